package prompts

import (
	"fmt"
	"hash/fnv"
	"strings"

	"github.com/shouni/go-comic-tutor/pkg/domain"
)

// 画像生成の品質を一貫させるためのテンプレート定数
const (
	// StructureHeader はコマとしての構図を強制する指示です。
	StructureHeader = `### MANDATORY FORMAT: SINGLE COMIC PANEL COMPOSITION ###
- STRUCTURE: One self-contained panel with a clear frame border.
- GUTTERS: Crisp hairline border. The panel is a single scene, not a page grid.`

	// RenderingStyle は描画の品質を一貫させるための指示です。
	RenderingStyle = `### GLOBAL VISUAL STYLE ###
- RENDERING: Sharp clean lineart, vibrant flat colors, no blurring, high contrast, friendly educational comic lighting.`

	// SystemPrompt は全パネル共通のシステム指示です。
	SystemPrompt = "You are an illustrator for an instructional comic strip. " +
		"Every panel must stay visually consistent with the shared character style guide."
)

// Builder は絵コンテのコマから画像プロンプトを構築します。
// キャラクターの一貫性指示とテキスト描画ポリシーを全コマへ注入します。
type Builder struct {
	styleSuffix string // "flat colors, clean lineart" 等の共通サフィックス
}

// NewBuilder は新しい Builder を生成します。
func NewBuilder(styleSuffix string) *Builder {
	return &Builder{styleSuffix: styleSuffix}
}

// textRenderingInstruction は画像内テキストの扱いをモード別に指示します。
func textRenderingInstruction(mode domain.ImageTextMode, panel domain.PanelScript) string {
	switch mode {
	case domain.ImageTextNone:
		return "Text policy: do NOT render speech bubbles, captions, labels, " +
			"or any visible text in the image. " +
			"Leave clean space for post-render typography overlays."
	case domain.ImageTextMinimal:
		return "Text policy: render at most a tiny on-object label if absolutely necessary. " +
			"Avoid long captions and speech bubbles."
	default:
		return "Text policy: include concise in-panel text and speech bubbles where useful. " +
			fmt.Sprintf("Primary dialogue: %s", panel.DialogueOrCaption)
	}
}

// BuildPanelPrompt は絵コンテ全体の文脈とコマ固有の内容を1つの
// プロンプトへ統合します。同一入力に対して常に同一の文字列を返すため、
// そのままキャッシュキーの材料に使えます。
func (b *Builder) BuildPanelPrompt(storyboard *domain.Storyboard, panel domain.PanelScript, mode domain.ImageTextMode) string {
	var sb strings.Builder

	sb.WriteString(StructureHeader)
	sb.WriteString("\n\n")
	sb.WriteString(fmt.Sprintf("### TITLE: %s ###\n", storyboard.StoryTitle))
	sb.WriteString(fmt.Sprintf("Topic: %s\n", storyboard.Topic))
	sb.WriteString(fmt.Sprintf("Audience: %s\n", storyboard.AudienceLevel))
	sb.WriteString(fmt.Sprintf("Panel %d of %d.\n\n", panel.PanelNumber, len(storyboard.Panels)))

	sb.WriteString("### CHARACTER IDENTITIES ###\n")
	sb.WriteString(fmt.Sprintf("Recurring characters: %s\n", strings.Join(storyboard.RecurringCharacters, ", ")))
	sb.WriteString(fmt.Sprintf("Style and consistency guide: %s\n\n", storyboard.CharacterStyleGuide))

	sb.WriteString("### PANEL CONTENT ###\n")
	sb.WriteString(fmt.Sprintf("Scene: %s\n", panel.SceneDescription))
	sb.WriteString(fmt.Sprintf("Dialogue text reference: %s\n", panel.DialogueOrCaption))
	sb.WriteString(fmt.Sprintf("Teaching intent: %s\n", panel.TeachingIntent))
	if panel.MetaphorAnchor != "" {
		sb.WriteString(fmt.Sprintf("Metaphor anchor: %s\n", panel.MetaphorAnchor))
	}
	misconception := panel.MisconceptionAddressed
	if misconception == "" {
		misconception = "none"
	}
	sb.WriteString(fmt.Sprintf("Misconception addressed: %s\n", misconception))
	takeaway := panel.ExpectedTakeaway
	if takeaway == "" {
		takeaway = panel.TeachingIntent
	}
	sb.WriteString(fmt.Sprintf("Expected learner takeaway: %s\n\n", takeaway))

	sb.WriteString(textRenderingInstruction(mode, panel))
	sb.WriteString("\n")
	sb.WriteString(RenderingStyle)
	if b.styleSuffix != "" {
		sb.WriteString(fmt.Sprintf("\n- GLOBAL_STYLE: %s", b.styleSuffix))
	}
	sb.WriteString("\nInstructions: keep characters visually consistent with prior panels.")

	return sb.String()
}

// BuildNegativePrompt はモード別の禁止要素を返します。テキスト無し
// モードでは文字要素そのものを negative 側で押さえ込みます。
func (b *Builder) BuildNegativePrompt(mode domain.ImageTextMode) string {
	base := "blurry, photorealistic, watermark, extra fingers, inconsistent character design"
	if mode == domain.ImageTextNone {
		return base + ", text, letters, captions, speech bubbles, typography"
	}
	return base
}

// SeedForStoryboard はキャラクター名とスタイルガイドから決定論的な
// シードを導出します。同じ登場人物なら全コマで同じシードになり、
// 画風のブレを抑えられます。
func SeedForStoryboard(storyboard *domain.Storyboard) int64 {
	h := fnv.New64a()
	h.Write([]byte(storyboard.CharacterStyleGuide))
	for _, name := range storyboard.RecurringCharacters {
		h.Write([]byte("|"))
		h.Write([]byte(name))
	}
	return int64(h.Sum64() & 0x7fffffffffffffff)
}
