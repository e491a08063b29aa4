package critique

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

// reviewerPanel は固定順のレビュワー編成です。スコア平均とレポートの
// 並び順はこの順序で安定します。
var reviewerPanel = []Reviewer{
	TechnicalReviewer,
	BeginnerReviewer,
	FirstYearReviewer,
	PedagogyReviewer,
	VisualReviewer,
}

// EvaluateRequest は1回の批評実行の入力です。
type EvaluateRequest struct {
	RunID      string
	Stage      string
	Mode       domain.CritiqueMode
	Storyboard *domain.Storyboard
	Context    Context
}

// Evaluate はレビュワー編成を絵コンテの同一スナップショットへ適用し、
// 集約済みレポートを返します。mode が off の場合はレビュワーを
// 一切動かさず、常に合格の合成レポートを返します。
//
// レビュワーは純粋関数なので errgroup で並列実行し、全員の完了を
// 待ってから集約します。
func Evaluate(ctx context.Context, req EvaluateRequest) (domain.CritiqueReport, error) {
	if req.Mode == domain.CritiqueModeOff {
		return domain.CritiqueReport{
			RunID:              req.RunID,
			Stage:              req.Stage,
			CritiqueMode:       req.Mode,
			OverallVerdict:     domain.VerdictPass,
			OverallScore:       1.0,
			ReviewerReports:    []domain.ReviewerCritique{},
			RecommendedActions: []string{},
			CreatedAt:          domain.UTCTimestamp(),
		}, nil
	}

	reports := make([]domain.ReviewerCritique, len(reviewerPanel))
	eg, _ := errgroup.WithContext(ctx)
	for i, reviewer := range reviewerPanel {
		i, reviewer := i, reviewer
		eg.Go(func() error {
			reports[i] = reviewer(req.Storyboard, req.Context)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return domain.CritiqueReport{}, err
	}

	report := domain.CritiqueReport{
		RunID:           req.RunID,
		Stage:           req.Stage,
		CritiqueMode:    req.Mode,
		ReviewerReports: reports,
		CreatedAt:       domain.UTCTimestamp(),
	}

	scoreSum := 0.0
	for _, reviewer := range reports {
		scoreSum += reviewer.Score
		for _, issue := range reviewer.Issues {
			switch issue.Severity {
			case domain.SeverityCritical:
				report.BlockingIssueCount++
			case domain.SeverityMajor:
				report.MajorIssueCount++
			}
		}
	}
	report.OverallScore = round4(scoreSum / float64(len(reports)))
	report.OverallVerdict = domain.VerdictPass
	if report.BlockingIssueCount > 0 {
		report.OverallVerdict = domain.VerdictFail
	}
	report.RecommendedActions = collectActions(report.AllIssues())
	return report, nil
}

// collectActions は critical/major イシューの推奨アクションを
// 順序を保ったまま重複排除して返します。
func collectActions(issues []domain.CritiqueIssue) []string {
	seen := map[string]bool{}
	actions := []string{}
	for _, issue := range issues {
		if issue.Severity != domain.SeverityCritical && issue.Severity != domain.SeverityMajor {
			continue
		}
		if seen[issue.Recommendation] {
			continue
		}
		seen[issue.Recommendation] = true
		actions = append(actions, issue.Recommendation)
	}
	return actions
}

// ShouldBlockRender は strict モードでのみレンダリングを遮断します。
// critical が1件でもあるか、major が2件を超えると true です。
func ShouldBlockRender(report domain.CritiqueReport) bool {
	if report.CritiqueMode != domain.CritiqueModeStrict {
		return false
	}
	return report.BlockingIssueCount > 0 || report.MajorIssueCount > 2
}

// NeedsRewrite は書き換えサイクルが必要かを判定します。モードに
// 依存しないため、warn モードの呼び出し側も自己修復を選べます。
func NeedsRewrite(report domain.CritiqueReport) bool {
	return report.BlockingIssueCount > 0 || report.MajorIssueCount > 2
}
