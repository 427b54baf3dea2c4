package cli

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/agentgraph/internal/config"
	"github.com/aretw0/agentgraph/internal/logging"
	"github.com/aretw0/agentgraph/pkg/domain"
)

const answerScript = `
plan:
  - thought: trivial
    plan: []
    isPlanComplete: true
    finalAnswer: "hello there"
validation:
  - thought: ok
    isValid: true
`

// writeProject lays out a config using the scripted provider and a file store.
func writeProject(t *testing.T, extra string) (dir, cfgPath string) {
	t.Helper()
	dir = t.TempDir()
	script := filepath.Join(dir, "script.yaml")
	require.NoError(t, os.WriteFile(script, []byte(answerScript), 0o644))
	cfgPath = filepath.Join(dir, "agentgraph.yaml")
	body := "provider:\n  kind: scripted\n  script: " + script + "\n" +
		"tools:\n  file: " + filepath.Join(dir, "tools.yaml") + "\n" +
		"store:\n  kind: file\n  dir: " + filepath.Join(dir, "runs") + "\n" + extra
	require.NoError(t, os.WriteFile(cfgPath, []byte(body), 0o644))
	return dir, cfgPath
}

func TestNewCompleter(t *testing.T) {
	_, err := NewCompleter(config.ProviderConfig{Kind: "llama"})
	assert.Error(t, err)

	_, err = NewCompleter(config.ProviderConfig{Kind: config.ProviderAnthropic, Model: "m"})
	assert.Error(t, err, "api key is required")

	c, err := NewCompleter(config.ProviderConfig{Kind: config.ProviderOpenAI, Model: "m", APIKey: "k", RateLimitRPS: 5, RateLimitBurst: 1})
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestStoreMiddlewares(t *testing.T) {
	mws, err := StoreMiddlewares(config.PersistenceConfig{})
	require.NoError(t, err)
	assert.Empty(t, mws)

	key := base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{7}, 32))
	mws, err = StoreMiddlewares(config.PersistenceConfig{EncryptionKey: key, RedactKeys: []string{"password"}})
	require.NoError(t, err)
	assert.Len(t, mws, 2)

	_, err = StoreMiddlewares(config.PersistenceConfig{EncryptionKey: "short"})
	assert.Error(t, err)
	_, err = StoreMiddlewares(config.PersistenceConfig{EncryptionKey: key, FallbackKeys: []string{"bad"}})
	assert.Error(t, err)
}

func TestNewStack_ToolsFromFile(t *testing.T) {
	dir, cfgPath := writeProject(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.yaml"), []byte(`
tools:
  - name: list_files
    command: ls
    description: Lists a directory
`), 0o644))

	cfg, err := LoadConfig(cfgPath)
	require.NoError(t, err)
	stack, err := NewStack(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer stack.Close()

	assert.Equal(t, []string{"list_files"}, stack.Engine.Registry().Names())
}

func TestNewStack_InvalidConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Store.Kind = "s3"
	_, err := NewStack(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestExecute_PersistsRun(t *testing.T) {
	dir, cfgPath := writeProject(t, "")
	var out bytes.Buffer

	err := Execute(context.Background(), RunOptions{
		ConfigPath: cfgPath,
		Input:      "say hello",
		ChatID:     "c1",
		JSON:       true,
	}, &out)
	require.NoError(t, err)

	var state domain.RunState
	require.NoError(t, json.Unmarshal(out.Bytes(), &state))
	assert.True(t, state.IsCompleted)
	assert.Equal(t, "hello there", state.FinalAnswer)
	assert.FileExists(t, filepath.Join(dir, "runs", "c1.json"))
}

func TestExecute_TraceAndValidation(t *testing.T) {
	_, cfgPath := writeProject(t, "")
	var out bytes.Buffer
	validate := true

	err := Execute(context.Background(), RunOptions{
		ConfigPath: cfgPath,
		Input:      "say hello",
		Trace:      true,
		Validate:   &validate,
	}, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "phase=validation")
	assert.Contains(t, text, "phase=completed")
	assert.Contains(t, text, "hello there")
}

func TestExecute_RejectsEmptyInput(t *testing.T) {
	_, cfgPath := writeProject(t, "")
	err := Execute(context.Background(), RunOptions{ConfigPath: cfgPath, Input: "   "}, &bytes.Buffer{})
	assert.Error(t, err)
}

func TestRunChat(t *testing.T) {
	_, cfgPath := writeProject(t, "")
	in := strings.NewReader("hi\n\nagain\nexit\n")
	var out bytes.Buffer

	err := RunChat(context.Background(), ChatOptions{ConfigPath: cfgPath, ChatID: "chat-1"}, in, &out)
	require.NoError(t, err)

	text := out.String()
	assert.Contains(t, text, "Chat 'chat-1' started")
	assert.Equal(t, 2, strings.Count(text, "hello there"))
	assert.Contains(t, text, "Bye!")
}

func TestOpenPersistence_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Store.Kind = config.StoreRedis
	cfg.Redis.Addr = mr.Addr()

	p, err := OpenPersistence(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)
	defer p.Close()
	require.NotNil(t, p.Events)

	ctx := context.Background()
	require.NoError(t, p.Sessions.Save(ctx, "c1", domain.NewRunState("hi", "c1", domain.DefaultLimits())))
	assert.True(t, mr.Exists("agentgraph:run:c1"))

	ids, err := p.Sessions.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"c1"}, ids)
}

func TestOpenPersistence_RedisUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	cfg := config.Default()
	cfg.Store.Kind = config.StoreRedis
	cfg.Redis.Addr = addr
	_, err := OpenPersistence(context.Background(), cfg, logging.NewNop())
	assert.Error(t, err)
}

func TestOpenPersistence_EncryptedFileStore(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Store.Dir = dir
	cfg.Persistence.EncryptionKey = base64.StdEncoding.EncodeToString(bytes.Repeat([]byte{1}, 32))

	p, err := OpenPersistence(context.Background(), cfg, logging.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, p.Sessions.Save(ctx, "c1", domain.NewRunState("top secret", "c1", domain.DefaultLimits())))

	raw, err := os.ReadFile(filepath.Join(dir, "c1.json"))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "top secret")

	loaded, err := p.Sessions.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, "top secret", loaded.UserInput)
}

func TestValidate(t *testing.T) {
	dir, cfgPath := writeProject(t, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.yaml"), []byte(`
tools:
  - name: list_files
    command: ls
    description: Lists a directory
`), 0o644))

	var out bytes.Buffer
	require.NoError(t, Validate(cfgPath, &out))
	assert.Contains(t, out.String(), "provider scripted")
	assert.Contains(t, out.String(), "list_files")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tools.yaml"), []byte("tools: [{name: broken}]\n"), 0o644))
	assert.Error(t, Validate(cfgPath, &out))
}
