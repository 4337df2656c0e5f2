package sandbox

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"agentbridge/internal/adapter/world/mock"
	"agentbridge/internal/app/diagnose"
	"agentbridge/internal/domain/execution"
	"agentbridge/internal/domain/world"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, cfg Config, w *mock.World, s execution.Submission) execution.Outcome {
	t.Helper()
	return NewExecutor(cfg, nil).Execute(context.Background(), w, s)
}

func TestExecuteIssuesIntents(t *testing.T) {
	w := mock.New()
	out := run(t, Config{}, w, execution.Submission{Code: "world.issueIntent('noop')"})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"noop"}, w.Intents())
}

func TestExecuteEmptySubmission(t *testing.T) {
	w := mock.New()
	out := run(t, Config{}, w, execution.Submission{})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Empty(t, w.Intents())
}

func TestExecuteAwaitsWorld(t *testing.T) {
	w := mock.New()
	code := strings.Join([]string{
		"await world.waitTicks(3);",
		"await world.chat('hello');",
		"const s = await world.observe();",
		"if (s.status.health !== 20) throw new Error('bad health ' + s.status.health);",
		"const inv = await world.inventory();",
		"if (Object.keys(inv).length !== 0) throw new Error('inventory not empty');",
	}, "\n")
	out := run(t, Config{}, w, execution.Submission{Code: code})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, int64(3), w.Tick())
	assert.Equal(t, []string{"hello"}, w.Intents())
}

func TestExecutePreambleDefinesHelpers(t *testing.T) {
	w := mock.New()
	s := execution.Submission{
		Preamble: "async function say(msg) {\n  await world.chat('say ' + msg);\n}",
		Code:     "await say('hi');",
	}
	out := run(t, Config{}, w, s)
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"say hi"}, w.Intents())
}

func TestExecuteFaultKeepsUserLine(t *testing.T) {
	w := mock.New()
	s := execution.Submission{
		Preamble: "const a = 1;\nconst b = 2;",
		Code:     "world.chat('before');\nthrow new Error('boom');",
	}
	out := run(t, Config{}, w, s)
	require.Equal(t, execution.KindFault, out.Kind)
	assert.Equal(t, "Evaluation error: Runtime error: boom", out.Fault.Message)
	assert.Equal(t, []string{"before"}, w.Intents(), "intents issued before the fault stay issued")

	msg := diagnose.NewTranslator().Translate(out.Fault, s)
	assert.True(t, strings.HasPrefix(msg, "Your code:2\nthrow new Error('boom');"), "translated: %q", msg)
}

func TestExecuteHostErrorsAreCatchable(t *testing.T) {
	w := mock.New()
	w.ObserveErr = assert.AnError
	code := "try { await world.observe(); } catch (e) { await world.chat('caught'); }"
	out := run(t, Config{}, w, execution.Submission{Code: code})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"caught"}, w.Intents())
}

func TestExecuteHasNoAmbientCapabilities(t *testing.T) {
	w := mock.New()
	out := run(t, Config{}, w, execution.Submission{Code: "require('fs')"})
	require.Equal(t, execution.KindFault, out.Kind)
	assert.Contains(t, out.Fault.Message, "require")
}

func TestExecuteInnerHardCap(t *testing.T) {
	w := mock.New()
	out := run(t, Config{HardCap: 50 * time.Millisecond}, w, execution.Submission{Code: "while (true) {}"})
	require.Equal(t, execution.KindTimedOut, out.Kind)
	assert.Equal(t, execution.ScopeInner, out.Scope)
	assert.Equal(t, "TimeoutError: user code exceeded 50 ms", out.Fault.Message)
}

func TestExecuteDefaultHardCapMessage(t *testing.T) {
	if testing.Short() {
		t.Skip("runs for the full hard cap")
	}
	w := mock.New()
	out := run(t, Config{}, w, execution.Submission{Code: "while (true) {}"})
	require.Equal(t, execution.KindTimedOut, out.Kind)
	assert.Equal(t, "TimeoutError: user code exceeded 3000 ms", out.Fault.Message)
}

func TestExecuteWorldWaitIsNotCharged(t *testing.T) {
	w := mock.New()
	w.TickDelay = time.Millisecond
	out := run(t, Config{HardCap: 30 * time.Millisecond}, w, execution.Submission{Code: "await world.waitTicks(60); world.chat('done');"})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, int64(60), w.Tick())
	assert.Equal(t, []string{"done"}, w.Intents())
}

func TestExecuteTimerWaitIsNotCharged(t *testing.T) {
	w := mock.New()
	code := "await new Promise(resolve => setTimeout(resolve, 80)); world.chat('woke');"
	out := run(t, Config{HardCap: 30 * time.Millisecond}, w, execution.Submission{Code: code})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"woke"}, w.Intents())
}

func TestExecuteHardCapAccumulatesAcrossWaits(t *testing.T) {
	w := mock.New()
	w.TickDelay = time.Millisecond
	code := strings.Join([]string{
		"while (true) {",
		"  const until = Date.now() + 10;",
		"  while (Date.now() < until) {}",
		"  await world.waitTicks(1);",
		"}",
	}, "\n")
	out := run(t, Config{HardCap: 50 * time.Millisecond}, w, execution.Submission{Code: code})
	require.Equal(t, execution.KindTimedOut, out.Kind)
	assert.Equal(t, execution.ScopeInner, out.Scope)
	assert.Equal(t, "TimeoutError: user code exceeded 50 ms", out.Fault.Message)
}

func TestExecuteOuterCancellation(t *testing.T) {
	w := mock.New()
	w.TickDelay = time.Millisecond
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	out := NewExecutor(Config{}, nil).Execute(ctx, w, execution.Submission{Code: "while (true) { await world.waitTicks(1); }"})
	require.Equal(t, execution.KindTimedOut, out.Kind)
	assert.Equal(t, execution.ScopeOuter, out.Scope)
}

func TestExecuteTimers(t *testing.T) {
	w := mock.New()
	code := strings.Join([]string{
		"await new Promise(resolve => setTimeout(() => { world.chat('later'); resolve(); }, 10));",
		"let n = 0;",
		"await new Promise(resolve => {",
		"  const id = setInterval(() => { n++; if (n === 3) { clearInterval(id); resolve(); } }, 1);",
		"});",
		"const dropped = setTimeout(() => world.chat('never'), 5);",
		"clearTimeout(dropped);",
		"world.chat('n=' + n);",
	}, "\n")
	out := run(t, Config{}, w, execution.Submission{Code: code})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"later", "n=3"}, w.Intents())
}

func TestExecuteSyntaxError(t *testing.T) {
	w := mock.New()
	out := run(t, Config{}, w, execution.Submission{Code: "world.chat('x');\nlet = ;"})
	require.Equal(t, execution.KindFault, out.Kind)
	assert.True(t, strings.HasPrefix(out.Fault.Message, "Evaluation error: "), out.Fault.Message)
	assert.Empty(t, w.Intents())
}

func TestExecuteGoalBindings(t *testing.T) {
	w := mock.New()
	out := run(t, Config{}, w, execution.Submission{Code: "world.setGoal(new GoalNear(1, 64, 3, 2));"})
	require.True(t, out.OK(), "outcome: %+v", out)
	require.NotNil(t, w.Goal())
	assert.Equal(t, world.Goal{Kind: world.GoalNear, X: 1, Y: 64, Z: 3, Range: 2}, *w.Goal())

	out = run(t, Config{}, w, execution.Submission{Code: "world.stop();"})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Nil(t, w.Goal())
}

func TestExecuteVecAndFindBlocks(t *testing.T) {
	w := mock.New()
	w.SetCells("oak_log", []world.Cell{{X: 4, Y: 64, Z: 0}})
	code := strings.Join([]string{
		"const found = await world.findBlocks('oak_log', 16, 4);",
		"const d = new Vec3(0, 64, 0).distanceTo(found[0]);",
		"if (d !== 4) throw new Error('distance ' + d);",
		"await world.chat('ok ' + found.length);",
	}, "\n")
	out := run(t, Config{}, w, execution.Submission{Code: code})
	require.True(t, out.OK(), "outcome: %+v", out)
	assert.Equal(t, []string{"ok 1"}, w.Intents())
}

type dirLibrary struct{ dir string }

func (l dirLibrary) Index(context.Context) ([]byte, error)        { return []byte("{}"), nil }
func (l dirLibrary) File(context.Context, string) ([]byte, error) { return nil, os.ErrNotExist }
func (l dirLibrary) Resolve(_ context.Context, name string) (string, []byte, error) {
	path := filepath.Join(l.dir, name+".js")
	src, err := os.ReadFile(path)
	return path, src, err
}

func TestExecuteLibraryFaultPointsAtFile(t *testing.T) {
	dir := t.TempDir()
	lib := "function explode() {\n  throw new Error('lib boom');\n}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "explode.js"), []byte(lib), 0o644))

	s := execution.Submission{Preamble: "library.load('explode');", Code: "explode();"}
	out := NewExecutor(Config{}, dirLibrary{dir: dir}).Execute(context.Background(), mock.New(), s)
	require.Equal(t, execution.KindFault, out.Kind)
	assert.Equal(t, "Evaluation error: Runtime error: lib boom", out.Fault.Message)

	msg := diagnose.NewTranslator().Translate(out.Fault, s)
	assert.True(t, strings.HasPrefix(msg, filepath.Join(dir, "explode.js")+":2\nthrow new Error('lib boom');"), "translated: %q", msg)
	assert.True(t, strings.HasSuffix(msg, "at explode(); in your code"), "translated: %q", msg)
}

func TestParseStack(t *testing.T) {
	stack := "Error: boom\n\tat explode (/lib/explode.js:2:9(3))\n\tat parse (native)\n\tat user_code.js:4:1(12)\n"
	frames := parseStack(stack)
	require.Len(t, frames, 3)
	assert.Equal(t, execution.Frame{Function: "explode", File: "/lib/explode.js", Line: 2, Column: 9}, frames[0])
	assert.False(t, frames[1].HasPosition())
	assert.Equal(t, execution.Frame{File: execution.UnitName, Line: 4, Column: 1}, frames[2])
}

func TestParseSyntaxPosition(t *testing.T) {
	fr, ok := parseSyntaxPosition("SyntaxError: user_code.js: Line 2:5 Unexpected token =")
	require.True(t, ok)
	assert.Equal(t, execution.Frame{File: execution.UnitName, Line: 2, Column: 5}, fr)
}
