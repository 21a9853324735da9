// Package web 内嵌的单页界面
package web

import _ "embed"

// IndexHTML 页面内容，SQL 助手和面试助手各占一个标签页
//
//go:embed index.html
var IndexHTML []byte
