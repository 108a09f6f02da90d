package portkill

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const netstatOutput = `
Active Connections

  Proto  Local Address          Foreign Address        State           PID
  TCP    0.0.0.0:8080           0.0.0.0:0              LISTENING       4321
  TCP    [::]:8080              [::]:0                 LISTENING       4321
  TCP    127.0.0.1:18080        0.0.0.0:0              LISTENING       999
  TCP    192.168.1.2:51000      10.0.0.1:8080          ESTABLISHED     555
  TCP    127.0.0.1:8080         127.0.0.1:51234        TIME_WAIT       0
  TCP    127.0.0.1:8080         127.0.0.1:51235        ESTABLISHED     777
  UDP    0.0.0.0:8080           *:*                                    888
`

type recorder struct {
	mu    sync.Mutex
	calls []string
	out   map[string][]byte
	errs  map[string]error
}

func (r *recorder) run(_ context.Context, name string, args ...string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	call := strings.Join(append([]string{name}, args...), " ")
	r.calls = append(r.calls, call)
	return r.out[call], r.errs[call]
}

func TestParseLsof(t *testing.T) {
	assert.Equal(t, []int{123, 456}, ParseLsof("123\n456\n123\n\nabc\n-1\n"))
	assert.Empty(t, ParseLsof(""))
}

func TestParseNetstat(t *testing.T) {
	assert.Equal(t, []int{4321, 777}, ParseNetstat(netstatOutput, 8080))
	assert.Equal(t, []int{999}, ParseNetstat(netstatOutput, 18080))
	assert.Empty(t, ParseNetstat(netstatOutput, 9090))
}

func TestUnixReclaim(t *testing.T) {
	rec := &recorder{out: map[string][]byte{"lsof -ti tcp:8080": []byte("11\n22\n")}}
	var killed []int
	r := New(hclog.NewNullLogger(),
		WithPlatform("linux"),
		WithRunner(rec.run),
		WithKiller(func(pid int) error {
			if pid == 22 {
				return errors.New("no such process")
			}
			killed = append(killed, pid)
			return nil
		}),
	)

	got := r.Reclaim(8080)

	assert.Equal(t, []int{11}, got)
	assert.Equal(t, []int{11}, killed)
	assert.Equal(t, []string{"lsof -ti tcp:8080"}, rec.calls)
}

func TestUnixReclaimNoListener(t *testing.T) {
	rec := &recorder{errs: map[string]error{"lsof -ti tcp:8080": errors.New("exit status 1")}}
	r := New(hclog.NewNullLogger(), WithPlatform("darwin"), WithRunner(rec.run), WithKiller(func(int) error {
		t.Fatal("kill must not be called")
		return nil
	}))

	assert.Empty(t, r.Reclaim(8080))
}

func TestReclaimInvalidPort(t *testing.T) {
	rec := &recorder{}
	for _, platform := range []string{"linux", "windows"} {
		r := New(hclog.NewNullLogger(), WithPlatform(platform), WithRunner(rec.run))
		assert.Empty(t, r.Reclaim(0))
		assert.Empty(t, r.Reclaim(-5))
	}
	assert.Empty(t, rec.calls)
}

func TestWindowsReclaim(t *testing.T) {
	rec := &recorder{
		out:  map[string][]byte{"netstat -ano -p tcp": []byte(netstatOutput)},
		errs: map[string]error{"taskkill /PID 777 /F": errors.New("not found")},
	}
	r := New(hclog.NewNullLogger(), WithPlatform("windows"), WithRunner(rec.run), WithLabel("ginPort"))

	got := r.Reclaim(8080)

	assert.Equal(t, []int{4321}, got)
	assert.Equal(t, []string{
		"netstat -ano -p tcp",
		"taskkill /PID 4321 /F",
		"taskkill /PID 777 /F",
	}, rec.calls)
}

func TestWindowsReclaimMissingNetstat(t *testing.T) {
	rec := &recorder{errs: map[string]error{"netstat -ano -p tcp": errors.New("not found")}}
	r := New(hclog.NewNullLogger(), WithPlatform("windows"), WithRunner(rec.run))

	assert.Empty(t, r.Reclaim(8080))
	require.Len(t, rec.calls, 1)
}

type fakeReclaimer struct {
	ports []int
}

func (f *fakeReclaimer) Reclaim(port int) []int {
	f.ports = append(f.ports, port)
	return []int{port * 10}
}

func TestKillPorts(t *testing.T) {
	f := &fakeReclaimer{}

	killed := KillPorts(f, 8080, 0, 3000, 8080, -1)

	assert.Equal(t, []int{8080, 3000}, f.ports)
	assert.Equal(t, []int{80800, 30000}, killed)
}
