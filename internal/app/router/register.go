package router

import "github.com/gin-gonic/gin"

// Registrar 每个模块实现 Register, 在 gin 引擎上挂载自己的路由.
type Registrar interface{ Register(r *gin.Engine) }

// Mount 按顺序挂载模块, 忽略 nil.
func Mount(r *gin.Engine, rs ...Registrar) {
	for _, rg := range rs {
		if rg != nil {
			rg.Register(r)
		}
	}
}
