package server

import (
	"net"
	"net/http"
	"net/netip"

	"go.uber.org/zap"
)

// signalSourceIPs 为信号源官方出口 IP，始终放行。
var signalSourceIPs = []string{
	"52.89.214.238",
	"34.212.75.30",
	"54.218.53.128",
	"52.32.178.7",
	"127.0.0.1",
}

// allowlist 按来源 IP 过滤请求。内网与回环地址始终放行。
type allowlist struct {
	allowed map[string]bool
	logger  *zap.Logger
}

func newAllowlist(extra []string, logger *zap.Logger) *allowlist {
	allowed := make(map[string]bool, len(signalSourceIPs)+len(extra))
	for _, ip := range signalSourceIPs {
		allowed[ip] = true
	}
	for _, ip := range extra {
		allowed[ip] = true
	}
	return &allowlist{allowed: allowed, logger: logger}
}

func (a *allowlist) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}

		if !a.permits(host) {
			a.logger.Warn("拒绝来自白名单外的请求",
				zap.String("remote", host),
				zap.String("path", r.URL.Path),
			)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (a *allowlist) permits(host string) bool {
	if a.allowed[host] {
		return true
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	return addr.IsLoopback() || addr.IsPrivate()
}
