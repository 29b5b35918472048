// Package model はドメインモデルを定義する。
package model

import "time"

// Todo はユーザー所有のTodoアイテムを表す。
// 全ての読み書きは所有者のユーザーIDでフィルタされる。
type Todo struct {
	ID        string
	UserID    string
	Text      string
	Completed bool
	CreatedAt time.Time
}
