package app

// Command はアプリケーションの起動モードを表す。
type Command string

const (
	// CommandServe はWebサーバーモードで起動することを示す。
	CommandServe Command = "serve"
	// CommandWorker は期限切れデータ削除ワーカーのみで起動することを示す。
	CommandWorker Command = "worker"
	// CommandMigrate はデータベースマイグレーションを実行することを示す。
	CommandMigrate Command = "migrate"
	// CommandHealthcheck はヘルスチェックを実行することを示す。
	// distroless環境でのDockerヘルスチェック用。
	CommandHealthcheck Command = "healthcheck"
)

// ParseCommand はコマンドライン引数からサブコマンドを解析する。
// 引数が空またはサポート外のコマンドの場合はCommandServeを返す。
func ParseCommand(args []string) Command {
	if len(args) == 0 {
		return CommandServe
	}

	switch Command(args[0]) {
	case CommandServe, CommandWorker, CommandMigrate, CommandHealthcheck:
		return Command(args[0])
	default:
		return CommandServe
	}
}
