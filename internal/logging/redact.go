package logging

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/fyrsmithlabs/bookmarkd/internal/config"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const redacted = "[REDACTED]"

// Secret logs a config.Secret as its length only.
func Secret(key string, val config.Secret) zap.Field {
	return RedactedString(key, val.Value())
}

// RedactedString logs val as its length only.
func RedactedString(key, val string) zap.Field {
	return zap.String(key, "[REDACTED:"+strconv.Itoa(len(val))+"]")
}

// redactingCore scrubs fields before they reach an output. Bookmark and
// history URLs routinely carry session tokens in their query strings, so
// every string field that parses as an absolute URL is cleaned as well.
type redactingCore struct {
	zapcore.Core
	keys   map[string]bool
	params map[string]bool
}

func newRedactingCore(core zapcore.Core, cfg RedactionConfig) zapcore.Core {
	r := &redactingCore{
		Core:   core,
		keys:   make(map[string]bool, len(cfg.Keys)),
		params: make(map[string]bool, len(cfg.QueryParams)),
	}
	for _, k := range cfg.Keys {
		r.keys[strings.ToLower(k)] = true
	}
	for _, p := range cfg.QueryParams {
		r.params[strings.ToLower(p)] = true
	}
	return r
}

func (r *redactingCore) With(fields []zapcore.Field) zapcore.Core {
	return &redactingCore{Core: r.Core.With(r.redactFields(fields)), keys: r.keys, params: r.params}
}

func (r *redactingCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if r.Enabled(ent.Level) {
		return ce.AddCore(ent, r)
	}
	return ce
}

func (r *redactingCore) Write(ent zapcore.Entry, fields []zapcore.Field) error {
	return r.Core.Write(ent, r.redactFields(fields))
}

func (r *redactingCore) redactFields(fields []zapcore.Field) []zapcore.Field {
	var out []zapcore.Field
	for i, f := range fields {
		nf, changed := r.redactField(f)
		if !changed {
			if out != nil {
				out = append(out, f)
			}
			continue
		}
		if out == nil {
			out = make([]zapcore.Field, i, len(fields))
			copy(out, fields[:i])
		}
		out = append(out, nf)
	}
	if out == nil {
		return fields
	}
	return out
}

func (r *redactingCore) redactField(f zapcore.Field) (zapcore.Field, bool) {
	if r.keys[strings.ToLower(f.Key)] {
		return zap.String(f.Key, redacted), true
	}
	if f.Type != zapcore.StringType || !strings.Contains(f.String, "://") {
		return f, false
	}
	clean := r.redactURL(f.String)
	if clean == f.String {
		return f, false
	}
	return zap.String(f.Key, clean), true
}

// redactURL masks userinfo passwords and the values of sensitive query
// parameters. Strings that do not parse are returned unchanged.
func (r *redactingCore) redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" {
		return raw
	}
	if u.RawQuery != "" && len(r.params) > 0 {
		q := u.Query()
		dirty := false
		for name, vals := range q {
			if !r.params[strings.ToLower(name)] {
				continue
			}
			for i := range vals {
				vals[i] = "REDACTED"
			}
			dirty = true
		}
		if dirty {
			u.RawQuery = q.Encode()
		}
	}
	return u.Redacted()
}
