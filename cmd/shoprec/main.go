/*
shoprec 是电商推荐服务。

用法：

	shoprec serve   --config shoprec.yaml   启动 HTTP 服务
	shoprec resolve --subject-type USER --subject-id u1 --strategy HYBRID
	shoprec config                          打印生效配置
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:           "shoprec",
		Short:         "E-commerce product recommendation service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (default $SHOPREC_CONFIG)")

	root.AddCommand(
		newServeCmd(&configPath),
		newResolveCmd(&configPath),
		newConfigCmd(&configPath),
	)
	return root
}
