package middleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig configures cross-origin resource sharing for the GraphQL
// endpoint.
type CORSConfig struct {
	Enabled          bool
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int
}

// corsPolicy is the precomputed form of a CORSConfig: header values are
// joined once and origins hashed for lookup.
type corsPolicy struct {
	wildcard bool
	origins  map[string]struct{}

	methods     string
	headers     string
	expose      string
	maxAge      string
	credentials bool
}

func newCORSPolicy(cfg CORSConfig) *corsPolicy {
	p := &corsPolicy{
		origins:     make(map[string]struct{}),
		methods:     strings.Join(cfg.AllowedMethods, ", "),
		headers:     strings.Join(cfg.AllowedHeaders, ", "),
		expose:      strings.Join(cfg.ExposeHeaders, ", "),
		credentials: cfg.AllowCredentials,
	}
	if cfg.MaxAge > 0 {
		p.maxAge = strconv.Itoa(cfg.MaxAge)
	}
	for _, origin := range cfg.AllowedOrigins {
		origin = strings.TrimSpace(origin)
		if origin == "*" {
			p.wildcard = true
		} else if origin != "" {
			p.origins[origin] = struct{}{}
		}
	}
	return p
}

func (p *corsPolicy) allows(origin string) bool {
	if p.wildcard {
		return true
	}
	_, ok := p.origins[origin]
	return ok
}

func (p *corsPolicy) applyOriginHeaders(w http.ResponseWriter, origin string) {
	if p.wildcard {
		w.Header().Set("Access-Control-Allow-Origin", "*")
	} else {
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Add("Vary", "Origin")
		if p.credentials {
			w.Header().Set("Access-Control-Allow-Credentials", "true")
		}
	}
	if p.expose != "" {
		w.Header().Set("Access-Control-Expose-Headers", p.expose)
	}
}

func (p *corsPolicy) applyPreflightHeaders(w http.ResponseWriter) {
	if p.methods != "" {
		w.Header().Set("Access-Control-Allow-Methods", p.methods)
	}
	if p.headers != "" {
		w.Header().Set("Access-Control-Allow-Headers", p.headers)
	}
	if p.maxAge != "" {
		w.Header().Set("Access-Control-Max-Age", p.maxAge)
	}
}

// CORS adds cross-origin headers and short-circuits preflight requests.
// When disabled it is a no-op wrapper.
func CORS(cfg CORSConfig) func(http.Handler) http.Handler {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler {
			return next
		}
	}

	policy := newCORSPolicy(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			allowed := policy.allows(origin)
			if allowed {
				policy.applyOriginHeaders(w, origin)
			}

			if r.Method == http.MethodOptions {
				if allowed {
					policy.applyPreflightHeaders(w)
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
