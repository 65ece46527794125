// Command staff-token mints a bearer token for a server, kitchen screen or
// table terminal.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"

	"github.com/angelmondragon/dinein-backend/pkg/auth"
	"github.com/angelmondragon/dinein-backend/pkg/config"
	"github.com/angelmondragon/dinein-backend/pkg/enums"
	"github.com/angelmondragon/dinein-backend/pkg/logger"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "staff-token"})
	_ = godotenv.Load()

	staff := flag.String("staff", "", "staff uuid (generated when empty)")
	name := flag.String("name", "", "display name carried in the token")
	role := flag.String("role", string(enums.StaffRoleServer), "server|kitchen|manager|device")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	staffRole, err := enums.ParseStaffRole(*role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	staffID := uuid.New()
	if *staff != "" {
		if staffID, err = uuid.Parse(*staff); err != nil {
			fmt.Fprintf(os.Stderr, "invalid -staff: %v\n", err)
			os.Exit(1)
		}
	}

	token, err := auth.MintStaffToken(cfg.JWT, time.Now(), auth.StaffTokenPayload{
		StaffID: staffID,
		Name:    *name,
		Role:    staffRole,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to mint token", err)
		os.Exit(1)
	}

	ctx := logg.WithFields(context.Background(), map[string]any{
		"staff_id":   staffID.String(),
		"role":       staffRole,
		"expires_in": cfg.JWT.TTL().String(),
	})
	logg.Info(ctx, "staff token minted")
	fmt.Println(token)
}
