package handler

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"time"

	"github.com/utkarsh5026/poolserve/internal/workload"
)

// ErrBadParameter is returned for a malformed or negative query override.
var ErrBadParameter = errors.New("bad request parameter")

const (
	ParamCPUIterations = "cpuIterations"
	ParamIdleDelay     = "idleDelay"
	ParamFileLength    = "fileLength"
)

// ParseOverrides applies the query overrides in q on top of base. Absent
// parameters keep the base value. idleDelay is whole milliseconds; a Go
// duration such as "250ms" is accepted too.
func ParseOverrides(q url.Values, base workload.Config) (workload.Config, error) {
	cfg := base

	if v, ok := lookup(q, ParamCPUIterations); ok {
		n, err := parseCount(ParamCPUIterations, v)
		if err != nil {
			return base, err
		}
		cfg.CPUIterations = n
	}

	if v, ok := lookup(q, ParamIdleDelay); ok {
		d, err := parseDelay(v)
		if err != nil {
			return base, err
		}
		cfg.IdleDelay = d
	}

	if v, ok := lookup(q, ParamFileLength); ok {
		n, err := parseCount(ParamFileLength, v)
		if err != nil {
			return base, err
		}
		cfg.FileLength = n
	}

	return cfg, nil
}

func lookup(q url.Values, key string) (string, bool) {
	vs, ok := q[key]
	if !ok || len(vs) == 0 {
		return "", false
	}
	return vs[0], true
}

func parseCount(name, v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is not an integer", ErrBadParameter, name, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("%w: %s=%d must not be negative", ErrBadParameter, name, n)
	}
	return n, nil
}

const maxDelayMillis = math.MaxInt64 / int64(time.Millisecond)

func parseDelay(v string) (time.Duration, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		if ms < 0 {
			return 0, fmt.Errorf("%w: %s=%d must not be negative", ErrBadParameter, ParamIdleDelay, ms)
		}
		if ms > maxDelayMillis {
			return 0, fmt.Errorf("%w: %s=%d is out of range", ErrBadParameter, ParamIdleDelay, ms)
		}
		return time.Duration(ms) * time.Millisecond, nil
	}

	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %s=%q is neither milliseconds nor a duration", ErrBadParameter, ParamIdleDelay, v)
	}
	if d < 0 {
		return 0, fmt.Errorf("%w: %s=%s must not be negative", ErrBadParameter, ParamIdleDelay, d)
	}
	return d, nil
}
