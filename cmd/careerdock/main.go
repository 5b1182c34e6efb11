// Command careerdock はCareerDockの認証APIサーバーを起動する。
//
// 使い方:
//
//	careerdock [serve|migrate|healthcheck]
//
// サブコマンドを省略した場合はserveとして起動する。
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/careerdock/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "careerdock: %v\n", err)
		os.Exit(1)
	}
}
