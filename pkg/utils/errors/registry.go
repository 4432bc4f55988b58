package errors

import (
	"fmt"
	"net/http"
	"sort"
	"sync"
)

// catalog 保存全部已注册的错误码。
var catalog = struct {
	sync.RWMutex
	byCode map[int]*Errno
}{byCode: make(map[int]*Errno)}

// Register adds e to the catalog and returns it, so error variables can be
// declared as var ErrX = Register(New(...)).
//
// It panics on a duplicate code, and when a non-zero code maps to a 2xx
// status or a client category maps to a 5xx status.
func Register(e *Errno) *Errno {
	if e.Code != 0 {
		status := e.HTTPStatus()
		if status < http.StatusBadRequest {
			panic(fmt.Sprintf("errno %d (%s) must map to an error status, got %d", e.Code, e.MessageEN, status))
		}
		if IsClientError(e.Code) && status >= http.StatusInternalServerError {
			panic(fmt.Sprintf("errno %d (%s) is a client error but maps to %d", e.Code, e.MessageEN, status))
		}
	}

	catalog.Lock()
	defer catalog.Unlock()
	if existing, ok := catalog.byCode[e.Code]; ok {
		panic(fmt.Sprintf("errno %d already registered as %q", e.Code, existing.MessageEN))
	}
	catalog.byCode[e.Code] = e
	return e
}

// Lookup returns the registered Errno for code.
func Lookup(code int) (*Errno, bool) {
	catalog.RLock()
	e, ok := catalog.byCode[code]
	catalog.RUnlock()
	return e, ok
}

// ServiceCodes returns the registered codes owned by service, ascending.
func ServiceCodes(service int) []int {
	catalog.RLock()
	defer catalog.RUnlock()

	var out []int
	for code := range catalog.byCode {
		if s, _, _ := ParseCode(code); s == service {
			out = append(out, code)
		}
	}
	sort.Ints(out)
	return out
}
