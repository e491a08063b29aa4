package artifact

import (
	"fmt"
	"path/filepath"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

// CritiqueSink は批評ループの監査証跡を評価ディレクトリへ書き出します。
// 反復ごとのレポートは {stage}_iter_{NN}.json、適用ノートは
// {stage}_rewrite_{NN}.json、最終レポートは {stage}.json に残ります。
type CritiqueSink struct {
	dir string
}

// NewCritiqueSink は評価ディレクトリに紐づくシンクを返します。
func NewCritiqueSink(evaluationsDir string) *CritiqueSink {
	return &CritiqueSink{dir: evaluationsDir}
}

type iterationReport struct {
	domain.CritiqueReport
	Iteration       int  `json:"iteration"`
	AutoRewriteUsed bool `json:"auto_rewrite_enabled"`
}

type rewriteNotesRecord struct {
	Iteration    int      `json:"iteration"`
	RewriteNotes []string `json:"rewrite_notes"`
}

type finalReport struct {
	domain.CritiqueReport
	RewriteCount int `json:"rewrite_count"`
}

func (s *CritiqueSink) SaveIteration(stage string, iteration int, report domain.CritiqueReport, autoRewrite bool) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%s_iter_%02d.json", stage, iteration))
	return WriteJSON(path, iterationReport{CritiqueReport: report, Iteration: iteration, AutoRewriteUsed: autoRewrite})
}

func (s *CritiqueSink) SaveRewriteNotes(stage string, iteration int, notes []string) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%s_rewrite_%02d.json", stage, iteration))
	return WriteJSON(path, rewriteNotesRecord{Iteration: iteration, RewriteNotes: notes})
}

func (s *CritiqueSink) SaveFinal(stage string, report domain.CritiqueReport, rewriteCount int) error {
	path := filepath.Join(s.dir, fmt.Sprintf("%s.json", stage))
	return WriteJSON(path, finalReport{CritiqueReport: report, RewriteCount: rewriteCount})
}
