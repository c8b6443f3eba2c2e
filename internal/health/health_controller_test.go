package health

import (
	"os"
	"path/filepath"
	"testing"
)

func TestCheckHealthyStorage(t *testing.T) {
	dir := t.TempDir()
	c := healthController{storageDir: func() string { return dir }}

	resp := c.check()
	if resp.Status != statusOk || resp.Storage != statusOk {
		t.Errorf("health = %+v", resp)
	}
}

func TestCheckMissingStorageIsHealthy(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not-created-yet")
	c := healthController{storageDir: func() string { return dir }}

	if resp := c.check(); resp.Status != statusOk {
		t.Errorf("health = %+v", resp)
	}
}

func TestCheckStorageIsAFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c := healthController{storageDir: func() string { return file }}

	resp := c.check()
	if resp.Status != statusDegraded || resp.Storage == statusOk {
		t.Errorf("health = %+v", resp)
	}
}

func TestCheckReportsDisconnectedBackends(t *testing.T) {
	c := healthController{storageDir: func() string { return t.TempDir() }}

	resp := c.check()
	if resp.RabbitMQ || resp.MongoDB {
		t.Errorf("health = %+v, want no backends connected", resp)
	}
}
