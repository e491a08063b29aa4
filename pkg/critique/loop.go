package critique

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

// ReportSink は反復ごとの監査用レポート永続化先です。
type ReportSink interface {
	// SaveIteration は各反復のレポートを {stage}_iter_{NN} として保存します。
	SaveIteration(stage string, iteration int, report domain.CritiqueReport, autoRewrite bool) error
	// SaveRewriteNotes は適用された書き換えノートを保存します。
	SaveRewriteNotes(stage string, iteration int, notes []string) error
	// SaveFinal は最終レポートを rewrite_count 付きの {stage} として保存します。
	SaveFinal(stage string, report domain.CritiqueReport, rewriteCount int) error
}

// LoopRequest は批評→書き換えループの入力です。
type LoopRequest struct {
	RunID         string
	Stage         string
	Mode          domain.CritiqueMode
	Storyboard    *domain.Storyboard
	Context       Context
	MaxIterations int
	AutoRewrite   bool
	Sink          ReportSink
}

// LoopResult はループの終端状態です。ループは非収束でもエラーを
// 投げず、呼び出し側が最終レポートへ ShouldBlockRender を適用します。
type LoopResult struct {
	Storyboard   *domain.Storyboard
	FinalReport  domain.CritiqueReport
	RewriteCount int
}

// RunLoop は批評と決定的書き換えを固定点または反復上限まで回します。
//
// 評価回数は最大でも MaxIterations+1 回です。停止条件は順に:
// off モード、書き換え不要（収束）、autoRewrite 無効または予算切れ、
// そして書き換えエンジンのノートが空（これ以上の決定的修正が
// 存在しない）の4つです。
func RunLoop(ctx context.Context, req LoopRequest) (LoopResult, error) {
	current := req.Storyboard.Clone()
	rewriteCount := 0
	var finalReport domain.CritiqueReport

	for iteration := 0; iteration <= req.MaxIterations; iteration++ {
		report, err := Evaluate(ctx, EvaluateRequest{
			RunID:      req.RunID,
			Stage:      req.Stage,
			Mode:       req.Mode,
			Storyboard: current,
			Context:    req.Context,
		})
		if err != nil {
			return LoopResult{}, fmt.Errorf("critique evaluation failed at iteration %d: %w", iteration, err)
		}
		if req.Sink != nil {
			if err := req.Sink.SaveIteration(req.Stage, iteration, report, req.AutoRewrite); err != nil {
				return LoopResult{}, fmt.Errorf("failed to persist critique iteration %d: %w", iteration, err)
			}
		}
		finalReport = report

		if req.Mode == domain.CritiqueModeOff {
			break
		}
		if !NeedsRewrite(report) {
			slog.Info("storyboard converged clean", "stage", req.Stage, "iteration", iteration, "score", report.OverallScore)
			break
		}
		if !req.AutoRewrite || iteration == req.MaxIterations {
			slog.Info("critique loop stopped by budget or policy", "stage", req.Stage, "iteration", iteration, "auto_rewrite", req.AutoRewrite)
			break
		}

		rewritten, notes := ApplyTargetedRewrites(current, report, req.Context.ExpectedKeyPoints, req.Context.Misconceptions)
		if len(notes) == 0 {
			// 既知の決定的修正が尽きた。無限ループを避けて静かに停止する
			if report.BlockingIssueCount > 0 {
				slog.Warn("critique loop stopped with unresolved critical issues", "stage", req.Stage, "iteration", iteration, "critical", report.BlockingIssueCount)
			}
			break
		}
		current = rewritten
		rewriteCount++
		if req.Sink != nil {
			if err := req.Sink.SaveRewriteNotes(req.Stage, iteration, notes); err != nil {
				return LoopResult{}, fmt.Errorf("failed to persist rewrite notes at iteration %d: %w", iteration, err)
			}
		}
		slog.Info("applied targeted rewrites", "stage", req.Stage, "iteration", iteration, "notes", len(notes))
	}

	if req.Sink != nil {
		if err := req.Sink.SaveFinal(req.Stage, finalReport, rewriteCount); err != nil {
			return LoopResult{}, fmt.Errorf("failed to persist final critique report: %w", err)
		}
	}
	return LoopResult{Storyboard: current, FinalReport: finalReport, RewriteCount: rewriteCount}, nil
}
