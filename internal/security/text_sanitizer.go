// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizerService はユーザー入力のTodoテキストをサニタイズし、
// 保存されたテキストが他の画面で描画された際のXSSリスクを排除する。
// bluemondayのStrictPolicyにより全てのHTMLタグが除去される。
package security

import (
	"html"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキストのサニタイズ機能のインターフェースを定義する。
// Todoテキストの保存前に使用される。
type TextSanitizerService interface {
	// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// TextSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type TextSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerの新しいインスタンスを生成する。
// StrictPolicy（全タグ除去）を使用する。Todoテキストは装飾を持たない
// プレーンテキストであり、許可すべきタグが存在しないため。
func NewTextSanitizer() *TextSanitizer {
	return &TextSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize は入力からHTMLタグを全て除去したプレーンテキストを返す。
// bluemondayは出力をHTMLエスケープするため、テキストとして保存できるよう
// エスケープを元に戻す（"a < b" のような入力を壊さないため）。
func (s *TextSanitizer) Sanitize(raw string) string {
	return html.UnescapeString(s.policy.Sanitize(raw))
}
