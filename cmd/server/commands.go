package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"corpus-gen/internal/models"
	"corpus-gen/internal/router"
	"corpus-gen/internal/service"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "启动 HTTP 服务（默认）",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), *configPath)
		},
	}
}

func runServe(ctx context.Context, configPath string) error {
	cfg, logger, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	// 初始化数据库
	if err := models.InitDB(cfg); err != nil {
		return fmt.Errorf("初始化数据库失败: %w", err)
	}
	db := models.GetDB()
	if err := models.AutoMigrate(db); err != nil {
		return fmt.Errorf("数据库迁移失败: %w", err)
	}

	caller, cleanup, err := buildCaller(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	corpusGenService, err := router.NewCorpusGenService(cfg, logger, db, caller)
	if err != nil {
		return err
	}

	// 设置路由
	r := router.SetupRouter(cfg, logger, db, corpusGenService)

	// 启动服务器
	addr := cfg.Server.GetAddress()
	logger.Infof("服务器启动在 %s", addr)
	if err := r.Run(addr); err != nil {
		return fmt.Errorf("启动服务器失败: %w", err)
	}
	return nil
}

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "创建或更新数据库表",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			if err := models.InitDB(cfg); err != nil {
				return fmt.Errorf("初始化数据库失败: %w", err)
			}
			if err := models.AutoMigrate(models.GetDB()); err != nil {
				return fmt.Errorf("数据库迁移失败: %w", err)
			}
			fmt.Fprintf(os.Stderr, "%s 数据库迁移完成 (%s)\n", color.New(color.FgGreen).Sprint("✓"), cfg.Database.Driver)
			return nil
		},
	}
}

func generateCmd(configPath *string) *cobra.Command {
	var (
		intentID     uint
		style        string
		count        int
		runs         int
		examples     []string
		examplesFile string
		slotGlossary string
		extra        string
	)

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "生成候选语料并以 CSV 输出到标准输出（不导入）",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, logger, err := loadConfig(*configPath)
			if err != nil {
				return err
			}
			// 标准输出留给 CSV
			logger.SetOutput(os.Stderr)

			if err := models.InitDB(cfg); err != nil {
				return fmt.Errorf("初始化数据库失败: %w", err)
			}

			caller, cleanup, err := buildCaller(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			svc, err := router.NewCorpusGenService(cfg, logger, models.GetDB(), caller)
			if err != nil {
				return err
			}

			req := svc.NewGenerateRequest()
			req.IntentID = intentID
			req.Examples = examples
			req.SlotGlossary = slotGlossary
			req.ExtraContext = extra
			if cmd.Flags().Changed("style") {
				req.Style = style
			}
			if cmd.Flags().Changed("count") {
				req.Count = count
			}
			if cmd.Flags().Changed("runs") {
				req.Runs = runs
			}
			if examplesFile != "" {
				raw, err := os.ReadFile(examplesFile)
				if err != nil {
					return fmt.Errorf("读取示例文件失败: %w", err)
				}
				req.ExamplesText = string(raw)
			}

			session := svc.CreateSession()
			outcome, genErr := svc.Generate(ctx, session.ID, &req)
			if outcome == nil {
				return genErr
			}

			if err := service.WriteCandidatesCSV(os.Stdout, outcome.Session.Candidates, false); err != nil {
				return err
			}

			summary := fmt.Sprintf("%d 轮, %d 条候选", outcome.Rounds, outcome.Phrases)
			if genErr != nil {
				var roundErr *service.RoundError
				if errors.As(genErr, &roundErr) {
					fmt.Fprintf(os.Stderr, "%s 第 %d 轮失败，已输出前 %s\n", color.New(color.FgRed).Sprint("✗"), roundErr.Round, summary)
				}
				return genErr
			}
			fmt.Fprintf(os.Stderr, "%s 生成完成: %s\n", color.New(color.FgGreen).Sprint("✓"), summary)
			return nil
		},
	}

	cmd.Flags().UintVar(&intentID, "intent-id", 0, "意图ID")
	cmd.Flags().StringVar(&style, "style", "Normal", "风格: Normal/Formal/Casual/Colloquial")
	cmd.Flags().IntVar(&count, "count", 10, "每轮生成数量")
	cmd.Flags().IntVar(&runs, "runs", 1, "生成轮数")
	cmd.Flags().StringArrayVar(&examples, "example", nil, "示例短语，可重复")
	cmd.Flags().StringVar(&examplesFile, "examples-file", "", "按行分隔的示例文件")
	cmd.Flags().StringVar(&slotGlossary, "slot-glossary", "", "槽位说明")
	cmd.Flags().StringVar(&extra, "extra", "", "补充说明，默认使用功能描述")
	_ = cmd.MarkFlagRequired("intent-id")

	return cmd
}
