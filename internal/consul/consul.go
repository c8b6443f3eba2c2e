package consul

import (
	"fmt"
	"net"

	"github.com/egfanboy/mediapire-offline/internal/app"
	"github.com/hashicorp/consul/api"
)

var consulClient *api.Client

const (
	KeyScheme      = "scheme"
	KeyStoragePath = "storagePath"

	ServiceName = "mediapire-offline"
)

func GetClient() (*api.Client, error) {
	if consulClient == nil {
		err := NewConsulClient()

		if err != nil {
			return nil, err
		}
	}

	return consulClient, nil
}

func NewConsulClient() error {
	if consulClient != nil {
		return nil
	}

	defaultConfig := api.DefaultConfig()

	consulCfg := app.GetApp().Config.Consul

	defaultConfig.Address = fmt.Sprintf("%s:%d", consulCfg.Address, consulCfg.Port)
	defaultConfig.Scheme = consulCfg.Scheme

	client, err := api.NewClient(defaultConfig)
	if err != nil {
		return err
	}

	consulClient = client

	return nil
}

func findTrafficIp() (net.IP, error) {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return net.IP{}, err
	}
	defer conn.Close()

	localAddr := conn.LocalAddr().(*net.UDPAddr)

	return localAddr.IP, nil
}

func serviceId(ip net.IP) string {
	return fmt.Sprintf("%s-%s", ServiceName, ip)
}

func newRegistration(cfg app.Config, ip net.IP) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      serviceId(ip),
		Name:    ServiceName,
		Port:    cfg.Port,
		Address: ip.String(),
		Check: &api.AgentServiceCheck{
			HTTP:     fmt.Sprintf("%s://%s:%v/api/v1/health", cfg.Scheme, ip, cfg.Port),
			Interval: "10s",
			Timeout:  "30s",
		},
		Meta: map[string]string{KeyScheme: cfg.Scheme, KeyStoragePath: cfg.StorageDir},
	}
}

func RegisterService() error {
	trafficIp, err := findTrafficIp()
	if err != nil {
		return err
	}

	client, err := GetClient()
	if err != nil {
		return err
	}

	return client.Agent().ServiceRegister(newRegistration(app.GetApp().Config, trafficIp))
}

func UnregisterService() error {
	trafficIp, err := findTrafficIp()
	if err != nil {
		return err
	}

	client, err := GetClient()
	if err != nil {
		return err
	}

	return client.Agent().ServiceDeregister(serviceId(trafficIp))
}
