package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/formflow/formflow/api"
	"github.com/formflow/formflow/api/handlers"
	"github.com/formflow/formflow/optimizer"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// =============================================================================
// 📄 optimize 命令（离线批量）
// =============================================================================

type optimizeOptions struct {
	files       []string
	strict      bool
	concurrency int
}

// fileResult 单个请求文件的处理结果，按输入顺序输出
type fileResult struct {
	File    string                    `json:"file"`
	Success bool                      `json:"success"`
	Data    *api.OptimizeFormResponse `json:"data,omitempty"`
	Error   *handlers.ErrorInfo       `json:"error,omitempty"`
}

// errSomeFailed 至少一个文件失败时返回，结果已输出
var errSomeFailed = errors.New("one or more forms failed")

func newOptimizeCmd(root *rootOptions) *cobra.Command {
	opts := &optimizeOptions{}
	cmd := &cobra.Command{
		Use:   "optimize",
		Short: "Optimize one or more request files and print the results as JSON",
		Long: `Reads optimization requests ({"formId": ..., "responses": [...]}) from files,
calls the configured model for each, and prints one JSON result per file in
input order. Use "-" to read a request from stdin.

Exit status is non-zero when any file fails.`,
		Example: `  formflow optimize -f signup.json
  formflow optimize -f a.json -f b.json --strict --concurrency 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, err := loadConfig(root.configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("strict") {
				cfg.Optimizer.StrictSequence = opts.strict
			}
			// stdout 只输出结果 JSON
			cfg.Log.OutputPaths = []string{"stderr"}
			logger, _, err := initLogger(cfg.Log)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			p, err := buildPipeline(cfg, nil, logger)
			if err != nil {
				return err
			}

			results := optimizeFiles(ctx, p.optimizer, opts.files, cmd.InOrStdin(), opts.concurrency, logger)
			return writeResults(cmd.OutOrStdout(), results)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "Request file (repeatable, \"-\" for stdin)")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "Require the suggested sequence to be a permutation of the form's questions")
	cmd.Flags().IntVar(&opts.concurrency, "concurrency", 4, "Maximum forms optimized in parallel")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

// optimizeFiles 并发处理文件，结果顺序与 files 一致。单个文件失败不影响其他文件。
func optimizeFiles(ctx context.Context, opt optimizer.Optimizer, files []string, stdin io.Reader, concurrency int, logger *zap.Logger) []fileResult {
	if concurrency <= 0 {
		concurrency = 1
	}
	results := make([]fileResult, len(files))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)
	for i, file := range files {
		results[i] = fileResult{File: file}
		raw, err := readRequest(file, stdin)
		if err != nil {
			results[i].Error = &handlers.ErrorInfo{Code: "READ_ERROR", Message: err.Error()}
			continue
		}
		g.Go(func() error {
			res, err := opt.OptimizeForm(ctx, raw)
			if err != nil {
				te := optimizer.ToTypesError(err)
				results[i].Error = &handlers.ErrorInfo{
					Code:      string(te.Code),
					Message:   te.Message,
					Side:      te.Side,
					Fields:    api.FieldErrorsFrom(err),
					Retryable: te.Retryable,
				}
				logger.Warn("form failed", zap.String("file", file), zap.Error(err))
				return nil
			}
			data := api.NewOptimizeFormResponse(res)
			results[i].Success = true
			results[i].Data = &data
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// readRequest 读取请求文件；"-" 表示 stdin。stdin 只能读取一次。
func readRequest(file string, stdin io.Reader) ([]byte, error) {
	if file == "-" {
		if stdin == nil {
			return nil, fmt.Errorf("stdin not available")
		}
		return io.ReadAll(stdin)
	}
	return os.ReadFile(file)
}

func writeResults(w io.Writer, results []fileResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(results); err != nil {
		return fmt.Errorf("write results: %w", err)
	}
	for _, r := range results {
		if !r.Success {
			return errSomeFailed
		}
	}
	return nil
}
