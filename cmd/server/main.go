package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	router "github.com/partywave/partywave/internal/adapters/http"
	"github.com/partywave/partywave/internal/config"
	"github.com/partywave/partywave/internal/domain"
	"github.com/partywave/partywave/internal/party"
	"github.com/partywave/partywave/internal/store"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Initialize zerolog global logger early so config.Load can use it.
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	// Human-friendly output for terminal; in production you may want JSON only.
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	cfg, err := config.Load()
	if err != nil {
		log.Error().Err(err).Msg("failed to load config")
	}

	st, err := store.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open store")
	}
	defer st.Close()

	if cfg.SeedDemo {
		if err := seedDemo(ctx, st); err != nil {
			log.Error().Err(err).Msg("demo seed failed")
		}
	}

	coord := party.NewCoordinator(st, nil, party.Options{
		CountdownFrom: cfg.CountdownFrom,
		TickInterval:  cfg.TickInterval,
		StrictAuth:    cfg.StrictAuth,
	})

	r := router.SetupRouter(ctx, cfg, coord)
	addr := fmt.Sprintf(":%d", cfg.Port)

	srv := &http.Server{
		Addr:    addr,
		Handler: r,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("Partywave server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server error")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	log.Info().Msg("Server exited gracefully")
}

// seedDemo provisions the "ABCD" session with a small playlist so the
// server is usable without an external provisioning step.
func seedDemo(ctx context.Context, st *store.SQLite) error {
	const code = domain.SessionCode("ABCD")
	if _, err := st.SessionByCode(ctx, code); err == nil {
		return nil
	} else if !errors.Is(err, domain.ErrRoomNotFound) {
		return err
	}

	sess, err := st.CreateSession(ctx, code)
	if err != nil {
		return err
	}
	pl, err := st.CreatePlaylist(ctx, sess.ID, "Demo Mix", true)
	if err != nil {
		return err
	}

	songs := []domain.Song{
		{Playlist: pl.ID, ExternalID: "5ghIJDpPoe3CfHMGu71E6T", Name: "Smells Like Teen Spirit", Artist: "Nirvana", Length: "5:01", IsPlaying: true},
		{Playlist: pl.ID, ExternalID: "3n3Ppam7vgaVa1iaRUc9Lp", Name: "Mr. Brightside", Artist: "The Killers", Length: "3:42", IsVotable: true},
		{Playlist: pl.ID, ExternalID: "7ouMYWpwJ422jRcDASZB7P", Name: "Knights of Cydonia", Artist: "Muse", Length: "6:06", IsVotable: true},
		{Playlist: pl.ID, ExternalID: "0eGsygTp906u18L0Oimnem", Name: "Mr. Blue Sky", Artist: "Electric Light Orchestra", Length: "5:03", IsVotable: true},
	}
	for i := range songs {
		if err := st.AddSong(ctx, &songs[i]); err != nil {
			return err
		}
	}
	log.Info().Str("module", "main").Str("room", string(code)).Msg("demo session seeded")
	return nil
}
