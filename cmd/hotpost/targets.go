package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thongnm19089/share-fb/internal/models"
	"github.com/thongnm19089/share-fb/internal/utils"
)

var importAutoScan bool

var targetsCmd = &cobra.Command{
	Use:   "targets",
	Short: "管理监控目标",
}

var targetsListCmd = &cobra.Command{
	Use:   "list",
	Short: "列出监控目标及其状态",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		targets, err := a.store.Targets(ctx)
		if err != nil {
			return err
		}
		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\t名称\t自动\t扫描时刻\t状态\t最近爬取\t地址")
		for _, t := range targets {
			scan, last := "默认", "-"
			if t.ScanTime != nil {
				scan = t.ScanTime.String()
			}
			if t.LastCrawledAt != nil {
				last = t.LastCrawledAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(tw, "%s\t%s\t%v\t%s\t%s\t%s\t%s\n", t.ID, t.Name, t.AutoScan, scan, t.Status, last, t.FeedURL)
		}
		return tw.Flush()
	},
}

var targetsImportCmd = &cobra.Command{
	Use:   "import <url-file>",
	Short: "从地址列表文件导入监控目标",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, false)
		if err != nil {
			return err
		}
		defer a.close()

		urls, err := utils.ReadURLsFromFile(args[0])
		if err != nil {
			return err
		}

		existing, err := a.store.Targets(ctx)
		if err != nil {
			return err
		}
		known := make(map[string]bool, len(existing))
		for _, t := range existing {
			known[t.FeedURL] = true
		}

		added := 0
		for _, u := range urls {
			if known[u] {
				utils.Debugf("目标已存在, 跳过: %s", u)
				continue
			}
			t := models.MonitoredTarget{ID: models.NewID()[:8], Name: u, FeedURL: u, AutoScan: importAutoScan}
			if err := a.store.SaveTarget(ctx, t); err != nil {
				return err
			}
			known[u] = true
			added++
		}
		utils.Infof("✅ 导入完成: 新增 %d 个目标", added)
		return nil
	},
}

func init() {
	targetsImportCmd.Flags().BoolVar(&importAutoScan, "auto-scan", true, "导入的目标参与自动扫描")
	targetsCmd.AddCommand(targetsListCmd, targetsImportCmd)
}
