package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/hitoshi/textdesk/internal/email"
	"github.com/hitoshi/textdesk/internal/model"
	"github.com/hitoshi/textdesk/internal/repository"
)

// emailPattern はフォームで受け付けるメールアドレスの形式。
var emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidEmailAddress はメールアドレスの形式を検証する。
// サインインフォームと問い合わせフォームで共通の判定を使う。
func ValidEmailAddress(address string) bool {
	return emailPattern.MatchString(address)
}

// ErrEmailSend はマジックリンクメールの送信失敗を示す。
// ハンドラーはこのエラーを検出して再試行を促すフラッシュを表示する。
var ErrEmailSend = errors.New("auth: failed to send magic link email")

// ServiceConfig は認証サービスの設定。
type ServiceConfig struct {
	// MagicLinkTTL はマジックリンクの有効期間。
	MagicLinkTTL time.Duration
	// BaseURL は検証リンクの生成に使うサイトのベースURL。
	BaseURL string
}

// Service はマジックリンクによるサインインフローを提供する。
type Service struct {
	userRepo repository.UserRepository
	linkRepo repository.MagicLinkRepository
	sender   email.Sender
	config   ServiceConfig
}

// NewService はServiceを生成する。
func NewService(
	userRepo repository.UserRepository,
	linkRepo repository.MagicLinkRepository,
	sender email.Sender,
	config ServiceConfig,
) *Service {
	return &Service{
		userRepo: userRepo,
		linkRepo: linkRepo,
		sender:   sender,
		config:   config,
	}
}

// RequestSignIn はメールアドレス宛にマジックリンクを発行する。
// 未登録のアドレスには初回サインインとしてユーザーを自動作成する。
func (s *Service) RequestSignIn(ctx context.Context, address string) error {
	if !ValidEmailAddress(address) {
		return model.NewInvalidInputError("invalid email address")
	}

	user, err := s.userRepo.FindByEmail(ctx, address)
	if err != nil {
		return fmt.Errorf("failed to find user by email: %w", err)
	}

	var userID model.UserID
	if user != nil {
		userID = user.ID
	} else {
		userID, err = s.userRepo.Create(ctx, address)
		if err != nil {
			return fmt.Errorf("failed to create user: %w", err)
		}
		slog.Info("new user created",
			slog.String("user_id", userID.String()),
		)
	}

	token, err := generateToken()
	if err != nil {
		return err
	}

	link := &model.MagicLink{
		Token:     token,
		UserID:    userID,
		ExpiresAt: time.Now().Add(s.config.MagicLinkTTL),
		CreatedAt: time.Now(),
	}
	if err := s.linkRepo.Create(ctx, link); err != nil {
		return fmt.Errorf("failed to create magic link: %w", err)
	}

	verifyURL := fmt.Sprintf("%s/actions/auth/verify?token=%s", s.config.BaseURL, token)
	if err := s.sender.SendMagicLink(ctx, address, verifyURL); err != nil {
		slog.Error("failed to send magic link email",
			slog.String("error", err.Error()),
		)
		return ErrEmailSend
	}

	slog.Info("magic link issued",
		slog.String("user_id", userID.String()),
	)
	return nil
}

// VerifySignIn はマジックリンクトークンを検証して消費する。
// トークンはワンタイム: 一度消費されると再利用できない。
// 不正・期限切れのトークンはUnauthorizedエラーになる。
func (s *Service) VerifySignIn(ctx context.Context, token string) (model.UserID, error) {
	if token == "" {
		return 0, model.NewUnauthorizedError("invalid or expired magic link")
	}

	userID, ok, err := s.linkRepo.Consume(ctx, token)
	if err != nil {
		return 0, fmt.Errorf("failed to consume magic link: %w", err)
	}
	if !ok {
		return 0, model.NewUnauthorizedError("invalid or expired magic link")
	}

	slog.Info("user signed in",
		slog.String("user_id", userID.String()),
	)
	return userID, nil
}
