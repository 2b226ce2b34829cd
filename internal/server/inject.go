package server

import (
	"bytes"
	"net/http"
	"strings"
)

const (
	scriptPath    = "/__livereload.js"
	reloadPath    = "/__livereload"
	maxInjectSize = 512 * 1024
)

const reloadScript = `(() => {
  if (window.__SITEBUILDER_LR__) return;
  window.__SITEBUILDER_LR__ = true;
  const url = (location.protocol === 'https:' ? 'wss://' : 'ws://') + location.host + '` + reloadPath + `';
  function connect() {
    const ws = new WebSocket(url);
    ws.onmessage = (e) => {
      try {
        const m = JSON.parse(e.data);
        if (m.type === 'reload') { console.log('[sitebuilder] rebuilt, reloading'); location.reload(); }
      } catch (_) {}
    };
    ws.onclose = () => setTimeout(connect, 2000);
  }
  connect();
})();
`

const scriptTag = `<script async src="` + scriptPath + `"></script></body>`

func serveScript(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(reloadScript))
}

// injectLiveReload adds the live reload script tag before </body> of HTML pages.
func injectLiveReload(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p := r.URL.Path
		if p != "" && !strings.HasSuffix(p, "/") && !strings.HasSuffix(p, ".html") {
			next.ServeHTTP(w, r)
			return
		}
		inj := &injector{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(inj, r)
		inj.finalize()
	})
}

// injector buffers an HTML response up to maxInjectSize. Larger or
// non-HTML responses are passed through untouched.
type injector struct {
	http.ResponseWriter
	status      int
	buf         []byte
	buffering   bool
	passthrough bool
	wroteHeader bool
}

func (l *injector) WriteHeader(code int) {
	l.status = code
	if l.passthrough {
		l.ResponseWriter.WriteHeader(code)
		l.wroteHeader = true
	}
}

func (l *injector) startPassthrough() {
	l.passthrough = true
	if !l.wroteHeader {
		l.ResponseWriter.WriteHeader(l.status)
		l.wroteHeader = true
	}
}

func (l *injector) Write(data []byte) (int, error) {
	if l.passthrough {
		return l.ResponseWriter.Write(data)
	}
	if !l.buffering {
		ct := l.Header().Get("Content-Type")
		if l.status != http.StatusOK || (ct != "" && !strings.Contains(ct, "text/html")) {
			l.startPassthrough()
			return l.ResponseWriter.Write(data)
		}
		l.buffering = true
	}
	if len(l.buf)+len(data) > maxInjectSize {
		l.Header().Del("Content-Length")
		l.startPassthrough()
		if len(l.buf) > 0 {
			if _, err := l.ResponseWriter.Write(l.buf); err != nil {
				return 0, err
			}
			l.buf = nil
		}
		return l.ResponseWriter.Write(data)
	}
	l.buf = append(l.buf, data...)
	return len(data), nil
}

func (l *injector) finalize() {
	if l.passthrough {
		return
	}
	if len(l.buf) == 0 {
		if !l.wroteHeader {
			l.ResponseWriter.WriteHeader(l.status)
		}
		return
	}
	out := l.buf
	if i := bytes.LastIndex(out, []byte("</body>")); i >= 0 {
		var b bytes.Buffer
		b.Grow(len(out) + len(scriptTag))
		b.Write(out[:i])
		b.WriteString(scriptTag)
		b.Write(out[i+len("</body>"):])
		out = b.Bytes()
	}
	l.Header().Del("Content-Length")
	l.ResponseWriter.WriteHeader(l.status)
	_, _ = l.ResponseWriter.Write(out)
}
