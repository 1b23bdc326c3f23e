package app

import (
	"context"
	"fmt"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/grafana/dskit/modules"
	"github.com/grafana/dskit/server"
	"github.com/grafana/dskit/services"
	"github.com/pkg/errors"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"

	"github.com/zachfi/govee/modules/lights"
	"github.com/zachfi/govee/modules/mqttclient"
	"github.com/zachfi/govee/modules/router"
)

const (
	Server string = "server"

	Lights     string = "lights"
	MQTTClient string = "mqttclient"
	Router     string = "router"

	All string = "all"
)

var (
	_ router.Controller = (*lights.Lights)(nil)
	_ router.Broker     = (*mqttclient.MQTTClient)(nil)
)

func (a *App) setupModuleManager() error {
	mm := modules.NewManager(a.kitLogger)
	mm.RegisterModule(Server, a.initServer, modules.UserInvisibleModule)
	mm.RegisterModule(Lights, a.initLights)
	mm.RegisterModule(MQTTClient, a.initMqttClient)
	mm.RegisterModule(Router, a.initRouter)
	mm.RegisterModule(All, nil)

	deps := map[string][]string{
		Lights:     {Server},
		MQTTClient: {Server},
		Router:     {Lights, MQTTClient},

		All: {Lights, MQTTClient, Router},
	}

	for mod, targets := range deps {
		if err := mm.AddDependency(mod, targets...); err != nil {
			return err
		}
	}

	a.ModuleManager = mm

	return nil
}

func (a *App) initLights() (services.Service, error) {
	l, err := lights.New(a.cfg.Lights, a.logger)
	if err != nil {
		return nil, err
	}
	a.lights = l

	l.RegisterRoutes(a.Server.HTTP)

	return l, nil
}

func (a *App) initMqttClient() (services.Service, error) {
	c, err := mqttclient.New(a.cfg.MQTT, a.logger)
	if err != nil {
		return nil, err
	}
	a.mqttclient = c

	return c, nil
}

func (a *App) initRouter() (services.Service, error) {
	r, err := router.New(a.cfg.Router, a.logger, a.lights, a.mqttclient)
	if err != nil {
		return nil, err
	}
	a.router = r

	return r, nil
}

func (a *App) initServer() (services.Service, error) {
	a.cfg.Server.MetricsNamespace = metricsNamespace
	a.cfg.Server.ExcludeRequestInLog = true
	a.cfg.Server.RegisterInstrumentation = true
	a.cfg.Server.Log = a.kitLogger
	a.cfg.Server.GRPCOptions = append(a.cfg.Server.GRPCOptions, grpc.StatsHandler(otelgrpc.NewServerHandler()))

	server, err := server.New(a.cfg.Server)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create server")
	}

	servicesToWaitFor := func() []services.Service {
		svs := []services.Service(nil)
		for m, s := range a.serviceMap {
			// Server should not wait for itself.
			if m != Server {
				svs = append(svs, s)
			}
		}
		return svs
	}

	a.Server = server

	serverDone := make(chan error, 1)

	runFn := func(ctx context.Context) error {
		go func() {
			defer close(serverDone)
			serverDone <- server.Run()
		}()

		select {
		case <-ctx.Done():
			return nil
		case err := <-serverDone:
			if err != nil {
				return err
			}
			return fmt.Errorf("server stopped unexpectedly")
		}
	}

	stoppingFn := func(_ error) error {
		// wait until all modules are done, and then shutdown server.
		for _, s := range servicesToWaitFor() {
			_ = s.AwaitTerminated(context.Background())
		}

		// shutdown HTTP and gRPC servers (this also unblocks Run)
		server.Shutdown()

		// if not closed yet, wait until server stops.
		<-serverDone
		_ = level.Info(a.kitLogger).Log("msg", "server stopped")
		return nil
	}

	return services.NewBasicService(nil, runFn, stoppingFn), nil
}

// newKitLogger returns the go-kit logger handed to the dskit server and
// module manager.
func newKitLogger(lvl string) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(os.Stderr))
	logger = level.NewFilter(logger, level.Allow(level.ParseDefault(lvl, level.InfoValue())))
	return log.With(logger, "ts", log.DefaultTimestampUTC, "caller", log.DefaultCaller)
}
