package cli

import (
	"context"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

func TestServeCmd_RequiresServices(t *testing.T) {
	setupTestServices(t)
	ingestService = nil

	_, err := execute(t, "serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "services not configured")
}

func TestServeCmd_ServesUntilCancelled(t *testing.T) {
	setupTestServices(t)
	addr := freeAddr(t)

	resetFlags(serveCmd.Flags())
	rootCmd.SetArgs([]string{"serve", "--addr", addr})
	defer rootCmd.SetArgs(nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- rootCmd.ExecuteContext(ctx)
	}()

	assert.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(15 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
}

func TestReloadOnHangup_StopsWithContext(t *testing.T) {
	prompts := &mockPromptStore{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		reloadOnHangup(ctx, prompts)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("reloadOnHangup did not return")
	}
	assert.Zero(t, prompts.reloads)
}

func TestMCPCmd_RequiresSearch(t *testing.T) {
	setupTestServices(t)
	searchService = nil

	_, err := execute(t, "mcp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "search service")
}
