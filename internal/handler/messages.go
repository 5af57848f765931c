package handler

// フラッシュメッセージの文言。利用者に表示される英語テキストをここに集約する。
const (
	// サインイン関連
	MsgSignedIn         = "Successfully signed in!"
	MsgSignedOut        = "You have been signed out."
	MsgMagicLinkSent    = "Check your email for a sign-in link."
	MsgMagicLinkInvalid = "That sign-in link is invalid or has expired."
	MsgEmailSendFailed  = "Failed to send email. Please try again."
	MsgEmailInvalid     = "Please enter a valid email address."
	MsgSignInRequired   = "Please sign in to continue"
	MsgTooManyRequests  = "Too many sign-in attempts. Please wait a moment."

	// Todo関連
	MsgTodoCreated    = "Todo created."
	MsgTodoToggled    = "Todo updated."
	MsgTodoDeleted    = "Todo deleted."
	MsgTodoTitleEmpty = "Please enter a todo title."

	// テキスト解析・決済関連
	MsgTextEmpty      = "Please enter some text to analyze."
	MsgFileTooLarge   = "File too large. Maximum size is 10 MB."
	MsgFileNotText    = "File must be valid UTF-8 text."
	MsgNoFileProvided = "No file provided."
	MsgPaymentSuccess = "Payment confirmed. Thank you!"
	MsgPaymentFailed  = "We could not confirm your payment. Please try again."
	MsgOrderNotFound  = "Order not found."

	// 問い合わせフォーム関連
	MsgContactSent         = "Thank you for your message! We'll get back to you soon."
	MsgContactMessageEmpty = "Please enter a message."

	// 管理画面関連
	MsgRoleGranted      = "Admin role granted."
	MsgRoleRevoked      = "Admin role revoked."
	MsgSelfRevokeDenied = "You cannot revoke your own admin role."
)
