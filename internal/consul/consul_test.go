package consul

import (
	"net"
	"testing"

	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/hashicorp/consul/api"
)

func TestNewRegistration(t *testing.T) {
	cfg := app.DefaultConfig()
	cfg.Port = 9000
	cfg.StorageDir = "/data/offline"

	r := newRegistration(cfg, net.ParseIP("10.0.0.5"))

	if r.ID != "mediapire-offline-10.0.0.5" || r.Name != ServiceName {
		t.Errorf("registration = %+v", r)
	}

	if r.Check.HTTP != "http://10.0.0.5:9000/api/v1/health" {
		t.Errorf("check url = %s", r.Check.HTTP)
	}

	if r.Meta[KeyStoragePath] != "/data/offline" || r.Meta[KeyScheme] != "http" {
		t.Errorf("meta = %v", r.Meta)
	}
}

func TestHasInstance(t *testing.T) {
	entries := []*api.ServiceEntry{
		{Service: &api.AgentService{ID: "mediapire-offline-10.0.0.1"}},
		{Service: nil},
		{Service: &api.AgentService{ID: "mediapire-offline-10.0.0.2"}},
	}

	if !hasInstance(entries, "mediapire-offline-10.0.0.2") {
		t.Error("expected the instance to be found")
	}

	if hasInstance(entries, "mediapire-offline-10.0.0.3") {
		t.Error("unexpected instance found")
	}

	if hasInstance(nil, "mediapire-offline-10.0.0.1") {
		t.Error("no entries should have no instance")
	}
}
