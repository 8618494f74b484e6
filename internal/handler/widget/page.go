package widget

import (
	_ "embed"
	"net/http"
)

//go:embed static/index.html
var indexHTML []byte

// ServePage 返回内嵌的小组件页面
func ServePage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(indexHTML)
}
