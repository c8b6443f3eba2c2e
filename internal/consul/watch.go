package consul

import (
	"context"
	"time"

	"github.com/hashicorp/consul/api"
	"github.com/rs/zerolog/log"
)

const (
	watchWaitTime   = 5 * time.Minute
	watchRetryDelay = 10 * time.Second
)

func hasInstance(entries []*api.ServiceEntry, id string) bool {
	for _, e := range entries {
		if e.Service != nil && e.Service.ID == id {
			return true
		}
	}

	return false
}

// KeepRegistered watches the catalog entry of this service and registers it
// again when consul lost it, for instance after an agent restart.
func KeepRegistered(ctx context.Context) {
	client, err := GetClient()
	if err != nil {
		log.Err(err).Msg("Cannot watch consul registration")
		return
	}

	trafficIp, err := findTrafficIp()
	if err != nil {
		log.Err(err).Msg("Cannot watch consul registration")
		return
	}

	id := serviceId(trafficIp)

	var lastIndex uint64
	for {
		if ctx.Err() != nil {
			return
		}

		// do not only return healthy services, a failing check is not a removal
		services, meta, err := client.Health().Service(ServiceName, "", false, (&api.QueryOptions{
			WaitIndex: lastIndex, // Long polling
			WaitTime:  watchWaitTime,
		}).WithContext(ctx))
		if err != nil {
			if ctx.Err() != nil {
				return
			}

			log.Err(err).Msgf("Failed to query health for service %s from consul.", ServiceName)

			select {
			case <-ctx.Done():
				return
			case <-time.After(watchRetryDelay):
			}

			continue
		}

		lastIndex = meta.LastIndex

		if !hasInstance(services, id) {
			log.Warn().Msgf("Service %s is not registered in consul anymore, registering again", id)

			err := RegisterService()
			if err != nil {
				log.Err(err).Msg("Failed to register service to consul")
			}
		}
	}
}
