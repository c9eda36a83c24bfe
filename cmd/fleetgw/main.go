/*
 * Copyright 2025 Comcast Cable Communications Management, LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/comcast/fleetgw/buildinfo"
	"github.com/comcast/fleetgw/config"
	"github.com/comcast/fleetgw/gateway"
	"github.com/comcast/fleetgw/handlers"
	"github.com/comcast/fleetgw/listener"
	"github.com/comcast/fleetgw/logger"
	"github.com/comcast/fleetgw/middleware/logging"
	"github.com/comcast/fleetgw/middleware/muxprom"
	"github.com/comcast/fleetgw/purge"
	"github.com/comcast/fleetgw/store"
	fleet_vault "github.com/comcast/fleetgw/vault"
	"github.com/comcast/fleetgw/vehicleapi"
	"github.com/comcast/fleetgw/worker"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gopkg.in/alecthomas/kingpin.v2"
)

const app = "fleetgw"

var (
	a                  = kingpin.New(app, "teltonika avl ingestion gateway for the vehicle management api")
	apiBaseURL         = a.Flag("api.base-url", "Vehicle Management API base url").Default("http://localhost:8080").Envar("API_BASE_URL").String()
	apiKey             = a.Flag("api.key", "Vehicle Management API key").Default("").Envar("VEHICLE_MANAGEMENT_SERVICE_API_KEY").String()
	dbPath             = a.Flag("db.path", "sqlite file holding undelivered events").Default("/var/lib/fleetgw/failed_events.db").Envar("FAILED_EVENT_DB").String()
	listenersConfig    = a.Flag("listeners.config", "YAML file overriding the built-in device listener profiles").Default("").Envar("LISTENERS_CONFIG").String()
	queueSize          = a.Flag("worker.queue-size", "max frames buffered per device connection").Default("4000").Envar("WORKER_QUEUE_SIZE").Int()
	frameDelay         = a.Flag("worker.frame-delay", "pause between processed frames per device").Default("5s").Envar("WORKER_FRAME_DELAY").Duration()
	purgeChunkSize     = a.Flag("purge.chunk-size", "max failed events replayed per purge pass").Default("500").Envar("PURGE_CHUNK_SIZE").Int()
	sweepInterval      = a.Flag("purge.sweep-interval", "how often the background sweep replays offline devices").Default("5m").Envar("PURGE_SWEEP_INTERVAL").Duration()
	sweepConcurrency   = a.Flag("purge.sweep-concurrency", "devices replayed in parallel by the background sweep").Default("4").Envar("PURGE_SWEEP_CONCURRENCY").Int()
	insecureSkipVerify = a.Flag("insecure-skip-verify", "Skip TLS verification").Default("false").Envar("INSECURE_SKIP_VERIFY").Bool()
	logLevel           = a.Flag("log.level", "log level verbosity").PlaceHolder("[debug|info|warn|error]").Default("info").Envar("LOG_LEVEL").String()
	logMethod          = a.Flag("log.method", "alternative method for logging in addition to stdout").PlaceHolder("[file|vector]").Default("").Envar("LOG_METHOD").String()
	logFilePath        = a.Flag("log.file-path", "directory path where log files are written if log-method is file").Default("/var/log/fleetgw").Envar("LOG_FILE_PATH").String()
	logFileMaxSize     = a.Flag("log.file-max-size", "max file size in megabytes if log-method is file").Default("256").Envar("LOG_FILE_MAX_SIZE").String()
	logFileMaxBackups  = a.Flag("log.file-max-backups", "max file backups before they are rotated if log-method is file").Default("1").Envar("LOG_FILE_MAX_BACKUPS").String()
	logFileMaxAge      = a.Flag("log.file-max-age", "max file age in days before they are rotated if log-method is file").Default("1").Envar("LOG_FILE_MAX_AGE").String()
	vectorEndpoint     = a.Flag("vector.endpoint", "vector endpoint to send structured json logs to").Default("http://0.0.0.0:4444").Envar("VECTOR_ENDPOINT").String()
	adminPort          = a.Flag("port", "admin http port").Default("10023").Envar("ADMIN_PORT").String()
	vaultAddr          = a.Flag("vault.addr", "Vault instance address to get the api key from").Default("https://vault.com").Envar("VAULT_ADDRESS").String()
	vaultRoleId        = a.Flag("vault.role-id", "Vault Role ID for AppRole").Default("").Envar("VAULT_ROLE_ID").String()
	vaultSecretId      = a.Flag("vault.secret-id", "Vault Secret ID for AppRole").Default("").Envar("VAULT_SECRET_ID").String()
	vaultMountPath     = a.Flag("vault.mount-path", "kv mount holding the api key").Default("kv2").Envar("VAULT_MOUNT_PATH").String()
	vaultSecretPath    = a.Flag("vault.secret-path", "kv path of the api key secret").Default("fleetgw/api-key").Envar("VAULT_SECRET_PATH").String()
	vaultSecretField   = a.Flag("vault.secret-field", "field inside the secret holding the api key").Default("value").Envar("VAULT_SECRET_FIELD").String()

	log *zap.Logger

	vault *fleet_vault.Vault
)

var wg = sync.WaitGroup{}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	doneRenew := make(chan bool, 1)
	tokenLifecycle := make(chan bool, 1)

	hostname, err := os.Hostname()
	if err != nil {
		hostname = ""
	}

	a.HelpFlag.Short('h')

	_, err = a.Parse(os.Args[1:])
	if err != nil {
		panic(fmt.Errorf("error parsing argument flags - %s", err.Error()))
	}

	// validate logFilePath exists and is a directory
	if *logMethod == "file" {
		fd, err := os.Stat(*logFilePath)
		if os.IsNotExist(err) {
			panic(err)
		}
		if !fd.IsDir() {
			panic(fmt.Errorf("%s is not a directory", *logFilePath))
		}
	}

	logfileMaxSize, err := strconv.Atoi(*logFileMaxSize)
	if err != nil {
		panic(fmt.Errorf("error converting arg --log.file-max-size to int - %s", err.Error()))
	}

	logfileMaxBackups, err := strconv.Atoi(*logFileMaxBackups)
	if err != nil {
		panic(fmt.Errorf("error converting arg --log.file-max-backups to int - %s", err.Error()))
	}

	logfileMaxAge, err := strconv.Atoi(*logFileMaxAge)
	if err != nil {
		panic(fmt.Errorf("error converting arg --log.file-max-age to int - %s", err.Error()))
	}

	c := &config.Config{
		APIBaseURL:     *apiBaseURL,
		PurgeChunkSize: *purgeChunkSize,
		FrameDelay:     *frameDelay,
		SSLVerify:      *insecureSkipVerify,
	}

	config.NewConfig(c)
	c.SetAPIKey(*apiKey)

	// init logger config
	logConfig := logger.LoggerConfig{
		LogLevel:  *logLevel,
		LogMethod: *logMethod,
		LogFile: logger.LogFile{
			Path:       *logFilePath,
			MaxSize:    logfileMaxSize,
			MaxBackups: logfileMaxBackups,
			MaxAge:     logfileMaxAge,
		},
		VectorEndpoint: *vectorEndpoint,
	}

	err = logger.Initialize(app, hostname, logConfig)
	if err != nil {
		panic(fmt.Errorf("error initializing logger - log_method=%s vector_endpoint=%s log_file_path=%s log_file_max_size=%d log_file_max_backups=%d log_file_max_age=%d - err=%s",
			*logMethod, *vectorEndpoint, *logFilePath, logfileMaxSize, logfileMaxBackups, logfileMaxAge, err.Error()))
	}

	log = zap.L()
	defer logger.Flush()

	// configure vault client if vaultRoleId & vaultSecretId are set
	if *vaultRoleId != "" && *vaultSecretId != "" {
		var err error
		vault, err = fleet_vault.NewVaultAppRoleClient(
			ctx,
			fleet_vault.Parameters{
				Address:         *vaultAddr,
				ApproleRoleID:   *vaultRoleId,
				ApproleSecretID: *vaultSecretId,
			},
		)
		if err != nil {
			log.Error("failed initializing vault client", zap.Error(err),
				zap.String("vault_address", *vaultAddr),
				zap.String("vault_role_id", *vaultRoleId))
		} else {
			keyProps := &fleet_vault.APIKeyProperties{
				MountPath: *vaultMountPath,
				Path:      *vaultSecretPath,
				Field:     *vaultSecretField,
			}

			// refresh the api key on every login so rotations are picked up
			refreshKey := func() {
				key, err := vault.GetAPIKey(ctx, keyProps)
				if err != nil {
					log.Error("unable to fetch api key from vault", zap.Error(err))
					return
				}
				c.SetAPIKey(key)
				log.Info("api key refreshed from vault")
			}

			// start go routine to continuously renew vault token
			wg.Add(1)
			go vault.RenewToken(ctx, doneRenew, tokenLifecycle, &wg, refreshKey)
		}
	}

	profiles := listener.Defaults()
	if *listenersConfig != "" {
		profiles, err = listener.LoadOverrides(*listenersConfig)
		if err != nil {
			log.Error("unable to load listener overrides", zap.Error(err),
				zap.String("path", *listenersConfig))
			return
		}
	}

	st, err := store.Open(*dbPath)
	if err != nil {
		log.Error("unable to open failed-event store", zap.Error(err),
			zap.String("path", *dbPath))
		return
	}
	defer st.Close()

	client := vehicleapi.New(c.APIBaseURL, c.APIKey)
	registry := handlers.NewRegistry(client, st)

	workerCfg := worker.Config{
		QueueSize:  *queueSize,
		FrameDelay: c.FrameDelay,
		PurgeChunk: c.PurgeChunkSize,
	}

	group, groupCtx := errgroup.WithContext(ctx)
	for _, profile := range profiles {
		srv := gateway.New(profile, client, registry, workerCfg)
		group.Go(func() error {
			return srv.ListenAndServe(groupCtx)
		})
	}

	// a zero interval disables the background sweep; connected devices
	// still purge their own backlog
	if *sweepInterval > 0 {
		sweeper := purge.NewSweeper(st, registry, client, *sweepInterval, c.PurgeChunkSize, *sweepConcurrency)
		wg.Add(1)
		go func() {
			defer wg.Done()
			sweeper.Run(ctx)
		}()
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /info", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(buildinfo.Info)
	})

	mux.Handle("GET /metrics", promhttp.Handler())

	tmplIndex := template.Must(template.New("index").Parse(indexTmpl))
	mux.HandleFunc("GET /", func(w http.ResponseWriter, r *http.Request) {
		err := tmplIndex.Execute(w, buildinfo.Info)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	tmplFailed := template.Must(template.New("failed").Parse(failedTmpl))
	mux.HandleFunc("GET /failed", func(w http.ResponseWriter, r *http.Request) {
		backlogs, err := st.BacklogSummary(r.Context(), 100)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		err = tmplFailed.Execute(w, backlogs)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
		}
	})

	mux.HandleFunc("GET /verbosity", logger.Verbosity)
	mux.HandleFunc("PUT /verbosity", logger.SetVerbosity)

	instrumentation := muxprom.NewDefaultInstrumentation()
	wrappedmux := logging.LoggingHandler(instrumentation.Middleware(mux))

	srv := &http.Server{
		Addr:    ":" + *adminPort,
		Handler: wrappedmux,
	}

	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM, syscall.SIGHUP)

	adminListener, err := net.Listen("tcp4", ":"+*adminPort)
	if err != nil {
		log.Error("starting "+app+" admin endpoint failed", zap.Error(err))
		signals <- syscall.SIGTERM
	} else {
		wg.Add(1)
		go func() {
			defer wg.Done()

			if err := srv.Serve(adminListener); err != nil && err != http.ErrServerClosed {
				log.Error("admin http server received an error", zap.Error(err))
				signals <- syscall.SIGTERM
			}
		}()

		log.Info("started " + app + " service")
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		s := <-signals
		log.Info(s.String() + " signal caught, stopping app")
		if err := srv.Shutdown(ctx); err != nil {
			log.Error("admin http server shutdown failed", zap.Error(err))
		}

		// stops the device listeners and lets workers drain
		cancel()

		if vault != nil && vault.IsLoggedIn() {
			// send signal to stop token watcher if we were able to successfully login
			tokenLifecycle <- true
		}
		doneRenew <- true
	}()

	if err := group.Wait(); err != nil {
		log.Error("device listener failed", zap.Error(err))
		signals <- syscall.SIGTERM
	}

	wg.Wait()
}
