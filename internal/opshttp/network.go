package opshttp

import (
	"net"
	"net/http"
	"net/netip"

	"github.com/yannicklang1/eu-complience-hub-sub009/internal/log"
)

// requireNonPublicNetwork rejects callers whose socket address is not
// loopback, private or link-local. Forwarding headers are ignored: the ops
// listener is never behind the public proxy.
func requireNonPublicNetwork(logger log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !nonPublic(r.RemoteAddr) {
			ctx := r.Context()
			logger.Warn(ctx, "ops request from public network rejected",
				"network.peer.address", r.RemoteAddr,
				"url.path", r.URL.Path,
			)
			http.Error(w, "forbidden", http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func nonPublic(remoteAddr string) bool {
	host, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		return false
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	return addr.IsLoopback() || addr.IsPrivate() || addr.IsLinkLocalUnicast()
}
