package metrics

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/maruel/hrdesk/internal/auth"
	"github.com/maruel/hrdesk/internal/hr"
	"github.com/maruel/hrdesk/internal/kv"
)

// Compile-time checks.
var (
	_ hr.Observer          = (*Collector)(nil)
	_ auth.Observer        = (*Collector)(nil)
	_ prometheus.Collector = (*Collector)(nil)
)

func TestCollector(t *testing.T) {
	c := NewCollector()
	reg := prometheus.NewPedanticRegistry()
	if err := reg.Register(c); err != nil {
		t.Fatal(err)
	}

	c.Mutation("accounts", "insert")
	c.Mutation("accounts", "insert")
	c.Mutation("requests", "delete")
	c.Persisted(time.Millisecond, nil)
	c.Persisted(time.Millisecond, errors.New("disk full"))
	c.Login(auth.ResultSuccess)
	c.Login(auth.ResultInvalid)
	c.Request("GET", 200)
	c.ExternalChange()

	if got := testutil.ToFloat64(c.mutations.WithLabelValues("accounts", "insert")); got != 2 {
		t.Errorf("accounts inserts = %v", got)
	}
	if got := testutil.ToFloat64(c.persistFailures); got != 1 {
		t.Errorf("persist failures = %v", got)
	}
	if got := testutil.ToFloat64(c.dirty); got != 1 {
		t.Errorf("dirty = %v", got)
	}
	want := `
# HELP hrdesk_auth_logins_total Login attempts by outcome.
# TYPE hrdesk_auth_logins_total counter
hrdesk_auth_logins_total{result="invalid"} 1
hrdesk_auth_logins_total{result="success"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(want), "hrdesk_auth_logins_total"); err != nil {
		t.Error(err)
	}
	if n, err := testutil.GatherAndCount(reg); err != nil || n == 0 {
		t.Errorf("GatherAndCount() = %d, %v", n, err)
	}
}

func TestStoreObserver(t *testing.T) {
	c := NewCollector()
	mem := kv.NewMemory()
	st, _ := hr.Open(t.Context(), mem, hr.Options{Observer: c})
	st.Departments.Insert(&hr.Department{Name: "Ops"})
	mem.FailWrites = errors.New("quota exceeded")
	st.Departments.Delete(1)

	if got := testutil.ToFloat64(c.mutations.WithLabelValues("departments", "insert")); got != 1 {
		t.Errorf("inserts = %v", got)
	}
	if got := testutil.ToFloat64(c.persistFailures); got != 1 {
		t.Errorf("persist failures = %v", got)
	}
	if got := testutil.CollectAndCount(c.persistSeconds); got != 1 {
		t.Errorf("persist histogram series = %d", got)
	}
}
