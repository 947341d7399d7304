package server

import (
	"context"
	"net"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/CarLinkRent/CarLinkRent/internal/common/auth"
	"github.com/CarLinkRent/CarLinkRent/internal/common/config"
	"github.com/CarLinkRent/CarLinkRent/internal/common/logger"
	"github.com/CarLinkRent/CarLinkRent/internal/common/middleware"
	"github.com/opentracing/opentracing-go"
	"github.com/opentracing/opentracing-go/ext"
)

// Middleware 标准的 http.Handler 装饰器。
type Middleware func(http.Handler) http.Handler

// Chain 将多个中间件串起来（按传入顺序执行）。
func Chain(mws ...Middleware) Middleware {
	return func(next http.Handler) http.Handler {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			if mws[i] == nil {
				continue
			}
			h = mws[i](h)
		}
		return h
	}
}

// statusRecorder 截获响应状态码供访问日志使用。
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Recovery 防止 panic 直接把进程打崩，并记录栈信息。
func Recovery(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					if log != nil {
						log.Errorf("panic in http path=%s err=%v stack=%s", r.URL.Path, rec, string(debug.Stack()))
					}
					http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// AccessLog 记录每个 HTTP 请求的耗时/状态码。
func AccessLog(log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)
			cost := time.Since(start)

			if log != nil {
				fields := map[string]interface{}{
					"method": r.Method,
					"path":   r.URL.Path,
					"status": rec.status,
					"cost":   cost.String(),
				}
				if rec.status >= http.StatusInternalServerError {
					log.WithFields(fields).Warn("http request failed")
				} else {
					log.WithFields(fields).Info("http request ok")
				}
			}
		})
	}
}

// Tracing 基于 OpenTracing 的最小 server 中间件：
// - 从请求头里提取 span context（uber-trace-id 等，取决于上游注入格式）
// - 创建 server span，并注入到 ctx，方便业务侧 opentracing.StartSpanFromContext 使用
func Tracing(serviceName string) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tracer := opentracing.GlobalTracer()

			var parent opentracing.SpanContext
			if sc, err := tracer.Extract(opentracing.HTTPHeaders, opentracing.HTTPHeadersCarrier(r.Header)); err == nil {
				parent = sc
			}

			operation := r.Method + " " + r.URL.Path
			var span opentracing.Span
			if parent != nil {
				span = tracer.StartSpan(operation, ext.RPCServerOption(parent))
			} else {
				span = tracer.StartSpan(operation)
			}
			defer span.Finish()

			ext.SpanKindRPCServer.Set(span)
			ext.HTTPMethod.Set(span, r.Method)
			ext.HTTPUrl.Set(span, r.URL.Path)
			if serviceName != "" {
				span.SetTag("service", serviceName)
			}

			next.ServeHTTP(w, r.WithContext(opentracing.ContextWithSpan(r.Context(), span)))
		})
	}
}

// RateLimit 全局限流：超出时回 429。
func RateLimit(limiter middleware.RateLimiter) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter != nil && !limiter.Allow(r.Context()) {
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// PerClientRateLimit 按客户端 IP 的滑动窗口限流。
func PerClientRateLimit(window time.Duration, maxRequests int) Middleware {
	limiter := middleware.NewKeyedLimiter(window, maxRequests)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := r.RemoteAddr
			if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
				ip = host
			}
			if !limiter.AllowKey(r.Context(), ip) {
				http.Error(w, `{"error":"too many requests"}`, http.StatusTooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type authContextKey struct{}

// AuthInfo 从 JWT 中解析出的最小用户信息（放入 ctx，供业务侧使用）。
type AuthInfo struct {
	Subject string   // 用户 ID
	Email   string   // 归属检查用
	Roles   []string // 角色列表（RBAC）
}

// AuthFromContext 从 ctx 中取出鉴权信息。
func AuthFromContext(ctx context.Context) (AuthInfo, bool) {
	v := ctx.Value(authContextKey{})
	if v == nil {
		return AuthInfo{}, false
	}
	ai, ok := v.(AuthInfo)
	return ai, ok
}

// ContextWithAuth 测试和内部调用用：手工注入鉴权信息。
func ContextWithAuth(ctx context.Context, ai AuthInfo) context.Context {
	return context.WithValue(ctx, authContextKey{}, ai)
}

// JWTAuth JWT 鉴权中间件：
// - 从 `Authorization: Bearer <token>` 读取 token
// - 校验 HS256 签名、exp/nbf 等标准字段（jwt/v5 默认校验）
// - 将解析结果写入 ctx
// 公开路径（cfg.PublicPaths 前缀匹配）直接放行。
func JWTAuth(cfg config.AuthConfig, log logger.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicPath(cfg.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}
			if strings.TrimSpace(cfg.JWTSecret) == "" {
				if log != nil {
					log.Warn("auth enabled but jwt_secret is empty")
				}
				http.Error(w, `{"error":"auth not configured"}`, http.StatusUnauthorized)
				return
			}

			raw := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(raw), "bearer ") {
				raw = strings.TrimSpace(raw[len("bearer "):])
			}
			if raw == "" {
				http.Error(w, `{"error":"missing authorization"}`, http.StatusUnauthorized)
				return
			}

			claims, err := auth.ParseToken(cfg, raw)
			if err != nil {
				http.Error(w, `{"error":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := ContextWithAuth(r.Context(), AuthInfo{
				Subject: claims.Subject,
				Email:   claims.Email,
				Roles:   claims.Roles,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RBAC 基于路径前缀的简单 RBAC：
// - 若 cfg.RBAC 里存在匹配当前路径的前缀且要求角色非空，则 token roles 必须与之有交集
// - 未配置要求角色的路径默认放行（即“只鉴权，不限权”）
func RBAC(cfg config.AuthConfig) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !cfg.Enabled || isPublicPath(cfg.PublicPaths, r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			required := requiredRoles(cfg.RBAC, r.URL.Path)
			if len(required) == 0 {
				next.ServeHTTP(w, r)
				return
			}

			ai, ok := AuthFromContext(r.Context())
			if !ok {
				http.Error(w, `{"error":"missing auth context"}`, http.StatusUnauthorized)
				return
			}
			if hasAnyRole(ai.Roles, required) {
				next.ServeHTTP(w, r)
				return
			}
			http.Error(w, `{"error":"permission denied"}`, http.StatusForbidden)
		})
	}
}

func requiredRoles(rbac map[string][]string, path string) []string {
	// 取最长的匹配前缀，允许细路径覆盖粗路径的配置。
	best := ""
	for prefix := range rbac {
		if strings.HasPrefix(path, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best == "" {
		return nil
	}
	return rbac[best]
}

func hasAnyRole(got, required []string) bool {
	if len(got) == 0 || len(required) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(got))
	for _, r := range got {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		set[r] = struct{}{}
	}
	for _, r := range required {
		r = strings.TrimSpace(strings.ToLower(r))
		if r == "" {
			continue
		}
		if _, ok := set[r]; ok {
			return true
		}
	}
	return false
}

func isPublicPath(public []string, path string) bool {
	if path == "" || len(public) == 0 {
		return false
	}
	for _, p := range public {
		p = strings.TrimSpace(p)
		if p != "" && strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}
