package critique

import (
	"context"
	"testing"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

// recordingSink はループの永続化呼び出しを記録するテスト用シンクです。
type recordingSink struct {
	iterations   []domain.CritiqueReport
	rewriteNotes [][]string
	finalReport  *domain.CritiqueReport
	finalRewrite int
}

func (s *recordingSink) SaveIteration(stage string, iteration int, report domain.CritiqueReport, autoRewrite bool) error {
	s.iterations = append(s.iterations, report)
	return nil
}

func (s *recordingSink) SaveRewriteNotes(stage string, iteration int, notes []string) error {
	s.rewriteNotes = append(s.rewriteNotes, notes)
	return nil
}

func (s *recordingSink) SaveFinal(stage string, report domain.CritiqueReport, rewriteCount int) error {
	s.finalReport = &report
	s.finalRewrite = rewriteCount
	return nil
}

func TestRunLoop_ConvergesAfterTargetedRewrite(t *testing.T) {
	sink := &recordingSink{}
	result, err := RunLoop(context.Background(), LoopRequest{
		RunID: "r1", Stage: "plan", Mode: domain.CritiqueModeStrict,
		Storyboard: brokenStoryboard(), Context: testContext(),
		MaxIterations: 2, AutoRewrite: true, Sink: sink,
	})
	if err != nil {
		t.Fatal(err)
	}

	t.Run("recap と混乱モーメントが修正されるのだ", func(t *testing.T) {
		if result.Storyboard.RecapPanel != len(result.Storyboard.Panels) {
			t.Errorf("recap が最終コマでないのだ: %d", result.Storyboard.RecapPanel)
		}
		for _, issue := range result.FinalReport.AllIssues() {
			if issue.IssueCode == domain.IssueRecapNotFinal || issue.IssueCode == domain.IssueConfusionMissing {
				t.Errorf("修正済みのはずのイシューが残っているのだ: %s", issue.IssueCode)
			}
		}
	})

	t.Run("最終レポートは合格なのだ", func(t *testing.T) {
		if result.FinalReport.OverallVerdict != domain.VerdictPass {
			t.Errorf("収束後は合格のはずなのだ: %+v", result.FinalReport.AllIssues())
		}
		if ShouldBlockRender(result.FinalReport) {
			t.Error("収束後に遮断されてはいけないのだ")
		}
	})

	t.Run("反復レポートと書き換えノートが監査用に残るのだ", func(t *testing.T) {
		if len(sink.iterations) != 2 {
			t.Errorf("評価2回を期待したのだ: %d", len(sink.iterations))
		}
		if result.RewriteCount != 1 || sink.finalRewrite != 1 {
			t.Errorf("書き換え1回を期待したのだ: %d / %d", result.RewriteCount, sink.finalRewrite)
		}
		if len(sink.rewriteNotes) != 1 || len(sink.rewriteNotes[0]) == 0 {
			t.Errorf("書き換えノートが保存されるべきなのだ: %v", sink.rewriteNotes)
		}
		if sink.finalReport == nil {
			t.Fatal("最終レポートが保存されていないのだ")
		}
	})

	t.Run("入力の絵コンテは変更しないのだ", func(t *testing.T) {
		if brokenStoryboard().Hash() == result.Storyboard.Hash() {
			t.Error("書き換えが適用されているはずなのだ")
		}
	})
}

func TestRunLoop_AutoRewriteDisabledStopsAfterOneEvaluation(t *testing.T) {
	sink := &recordingSink{}
	result, err := RunLoop(context.Background(), LoopRequest{
		RunID: "r1", Stage: "plan", Mode: domain.CritiqueModeStrict,
		Storyboard: brokenStoryboard(), Context: testContext(),
		MaxIterations: 3, AutoRewrite: false, Sink: sink,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.iterations) != 1 {
		t.Errorf("評価は1回だけのはずなのだ: %d", len(sink.iterations))
	}
	if result.RewriteCount != 0 || len(sink.rewriteNotes) != 0 {
		t.Error("autoRewrite 無効で書き換えが走ったのだ")
	}
	if result.FinalReport.OverallVerdict != domain.VerdictFail {
		t.Error("未修正の絵コンテは不合格のままのはずなのだ")
	}
}

func TestRunLoop_ZeroBudgetEvaluatesOnce(t *testing.T) {
	sink := &recordingSink{}
	result, err := RunLoop(context.Background(), LoopRequest{
		RunID: "r1", Stage: "plan", Mode: domain.CritiqueModeStrict,
		Storyboard: brokenStoryboard(), Context: testContext(),
		MaxIterations: 0, AutoRewrite: true, Sink: sink,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.iterations) != 1 || result.RewriteCount != 0 {
		t.Errorf("予算0では評価1回・書き換え0回なのだ: %d / %d", len(sink.iterations), result.RewriteCount)
	}
}

func TestRunLoop_StopsWhenRewriteHasNothingLeft(t *testing.T) {
	// コマ数不足には決定的な修正ルールが無いため、recap と混乱モーメントを
	// 直した後の2周目でノートが空になり、予算を残して停止する。
	sb := brokenStoryboard()
	sb.Panels = sb.Panels[:3]

	sink := &recordingSink{}
	result, err := RunLoop(context.Background(), LoopRequest{
		RunID: "r1", Stage: "plan", Mode: domain.CritiqueModeStrict,
		Storyboard: sb, Context: testContext(),
		MaxIterations: 5, AutoRewrite: true, Sink: sink,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.iterations) != 2 {
		t.Errorf("非収束でも評価は2回で停止するはずなのだ: %d", len(sink.iterations))
	}
	if result.FinalReport.BlockingIssueCount == 0 {
		t.Error("コマ数不足の critical は残るはずなのだ")
	}
	if !ShouldBlockRender(result.FinalReport) {
		t.Error("strict モードでは未解決 critical で遮断するのだ")
	}
}

func TestRunLoop_OffModeSingleSyntheticPass(t *testing.T) {
	sink := &recordingSink{}
	result, err := RunLoop(context.Background(), LoopRequest{
		RunID: "r1", Stage: "plan", Mode: domain.CritiqueModeOff,
		Storyboard: brokenStoryboard(), Context: testContext(),
		MaxIterations: 3, AutoRewrite: true, Sink: sink,
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(sink.iterations) != 1 || result.RewriteCount != 0 {
		t.Error("off モードは評価1回で終わるのだ")
	}
	if result.FinalReport.OverallVerdict != domain.VerdictPass {
		t.Error("off モードは常に合格なのだ")
	}
}
