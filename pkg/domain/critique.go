package domain

// Severity は批評イシューの重大度です。critical > major > minor の順で
// ゲート判定に影響します。
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityMajor    Severity = "major"
	SeverityMinor    Severity = "minor"
)

// Verdict はレビュワー単位・レポート全体の合否です。
type Verdict string

const (
	VerdictPass Verdict = "pass"
	VerdictFail Verdict = "fail"
)

// CritiqueMode は批評ゲートの動作モードです。
type CritiqueMode string

const (
	CritiqueModeOff    CritiqueMode = "off"
	CritiqueModeWarn   CritiqueMode = "warn"
	CritiqueModeStrict CritiqueMode = "strict"
)

// IssueCode は書き換えディスパッチに使う閉じたイシューコード列挙です。
// メッセージ文字列でのマッチングは書き換えを静かに壊すため、
// 必ずこのコードで分岐します。
type IssueCode string

const (
	IssueKeyPointMissing          IssueCode = "technical_key_point_missing"
	IssueMisconceptionUnaddressed IssueCode = "technical_misconception_unaddressed"
	IssueRigorLow                 IssueCode = "technical_rigor_low"
	IssueDialogueTooDense         IssueCode = "beginner_dialogue_too_dense"
	IssueJargonOverload           IssueCode = "beginner_jargon_overload"
	IssueMissingMetaphor          IssueCode = "beginner_missing_metaphor"
	IssueBridgeMissing            IssueCode = "first_year_bridge_missing"
	IssueRecapNotFinal            IssueCode = "pedagogy_recap_not_final"
	IssuePanelCountTooLow         IssueCode = "pedagogy_panel_count_too_low"
	IssueConfusionMissing         IssueCode = "pedagogy_confusion_missing"
	IssueCaptionOverflow          IssueCode = "visual_caption_overflow"
	IssueCaptionTooLong           IssueCode = "visual_caption_too_long"
)

// CritiqueIssue はレビュワーが検出した単一のイシューです。
type CritiqueIssue struct {
	Reviewer       string         `json:"reviewer"`
	Severity       Severity       `json:"severity"`
	IssueCode      IssueCode      `json:"issue_code"`
	Message        string         `json:"message"`
	Recommendation string         `json:"recommendation"`
	PanelNumber    int            `json:"panel_number,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
}

// ReviewerCritique は1人のレビュワーペルソナの構造化出力です。
type ReviewerCritique struct {
	Reviewer   string          `json:"reviewer"`
	Verdict    Verdict         `json:"verdict"`
	Score      float64         `json:"score"`
	Confidence float64         `json:"confidence"`
	Summary    string          `json:"summary"`
	Issues     []CritiqueIssue `json:"issues"`
}

// CritiqueReport はゲート判定に使う集約済みレポートです。
// 一度生成されたら変更されず、ループの反復ごとに新しいレポートが作られます。
type CritiqueReport struct {
	RunID              string             `json:"run_id"`
	Stage              string             `json:"stage"`
	CritiqueMode       CritiqueMode       `json:"critique_mode"`
	OverallVerdict     Verdict            `json:"overall_verdict"`
	OverallScore       float64            `json:"overall_score"`
	BlockingIssueCount int                `json:"blocking_issue_count"`
	MajorIssueCount    int                `json:"major_issue_count"`
	ReviewerReports    []ReviewerCritique `json:"reviewer_reports"`
	RecommendedActions []string           `json:"recommended_actions"`
	CreatedAt          string             `json:"created_at"`
}

// AllIssues は全レビュワーのイシューを報告順に平坦化して返します。
func (r *CritiqueReport) AllIssues() []CritiqueIssue {
	var issues []CritiqueIssue
	for _, reviewer := range r.ReviewerReports {
		issues = append(issues, reviewer.Issues...)
	}
	return issues
}

// CountBySeverity はイシューリストから重大度別の件数を再計算します。
// レポートの BlockingIssueCount / MajorIssueCount は常にこの値と一致します。
func (r *CritiqueReport) CountBySeverity(severity Severity) int {
	count := 0
	for _, issue := range r.AllIssues() {
		if issue.Severity == severity {
			count++
		}
	}
	return count
}
