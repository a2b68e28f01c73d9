package config

import (
	"context"
	"errors"
	"os"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoad(t *testing.T) {
	Convey("Given the configuration loader", t, func() {
		ctx := context.Background()

		Convey("When nothing is set in the environment", func() {
			clearConfigEnvVars()

			cfg, err := Load(ctx)

			Convey("Then defaults are returned", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":9080")
				So(cfg.StartingCredits, ShouldEqual, 100)
				So(cfg.ResetDeadline, ShouldEqual, "2026-02-15T00:00:00Z")
			})
		})

		Convey("When env vars override defaults", func() {
			_ = os.Setenv("FANTA_ADDR", ":7070")
			_ = os.Setenv("FANTA_LOG_LEVEL", "debug")
			_ = os.Setenv("FANTA_STARTING_CREDITS", "150")
			defer clearConfigEnvVars()

			cfg, err := Load(ctx)

			Convey("Then the overrides win and the rest stays default", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":7070")
				So(cfg.LogLevel, ShouldEqual, "debug")
				So(cfg.StartingCredits, ShouldEqual, 150)
				So(cfg.AdminEventLimit, ShouldEqual, 20)
			})
		})

		Convey("When a YAML file is provided", func() {
			path := createTempConfigFile("addr: \":6060\"\nstarting_credits: 150\nreset_deadline: \"2027-01-01T00:00:00Z\"\n")
			defer func() { _ = os.Remove(path) }()

			_ = os.Setenv("FANTA_CONFIG", path)
			defer clearConfigEnvVars()

			cfg, err := Load(ctx)

			Convey("Then file values layer over defaults", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":6060")
				So(cfg.StartingCredits, ShouldEqual, 150)
				So(cfg.ResetDeadline, ShouldEqual, "2027-01-01T00:00:00Z")
				So(cfg.PublicEventLimit, ShouldEqual, 30)
			})
		})

		Convey("When both file and env are provided", func() {
			path := createTempConfigFile("addr: \":6060\"\nstarting_credits: 150\n")
			defer func() { _ = os.Remove(path) }()

			_ = os.Setenv("FANTA_CONFIG", path)
			_ = os.Setenv("FANTA_ADDR", ":5050")
			defer clearConfigEnvVars()

			cfg, err := Load(ctx)

			Convey("Then env wins over the file", func() {
				So(err, ShouldBeNil)
				So(cfg.Addr, ShouldEqual, ":5050")
				So(cfg.StartingCredits, ShouldEqual, 150)
			})
		})

		Convey("When the config file is missing", func() {
			_ = os.Setenv("FANTA_CONFIG", "/non/existent/fantacircolo.yaml")
			defer clearConfigEnvVars()

			cfg, err := Load(ctx)

			Convey("Then loading fails with ErrLoadConfig", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrLoadConfig), ShouldBeTrue)
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When the reset deadline override is malformed", func() {
			_ = os.Setenv("FANTA_RESET_DEADLINE", "not-a-timestamp")
			defer clearConfigEnvVars()

			cfg, err := Load(ctx)

			Convey("Then loading fails with ErrInvalidConfig", func() {
				So(err, ShouldNotBeNil)
				So(errors.Is(err, ErrInvalidConfig), ShouldBeTrue)
				So(cfg, ShouldBeNil)
			})
		})

		Convey("When addr is overridden to empty", func() {
			_ = os.Setenv("FANTA_ADDR", "")
			defer clearConfigEnvVars()

			cfg, err := Load(ctx)

			Convey("Then loading fails validation", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "addr must not be empty")
				So(cfg, ShouldBeNil)
			})
		})
	})
}

// Helper functions.

func clearConfigEnvVars() {
	envVars := []string{
		"FANTA_CONFIG",
		"FANTA_ADDR",
		"FANTA_LOG_LEVEL",
		"FANTA_STARTING_CREDITS",
		"FANTA_RESET_DEADLINE",
	}
	for _, envVar := range envVars {
		_ = os.Unsetenv(envVar)
	}
}

func createTempConfigFile(content string) string {
	tmpFile, err := os.CreateTemp("", "fantacircolo-config-*.yaml")
	if err != nil {
		panic(err)
	}
	if _, err := tmpFile.WriteString(content); err != nil {
		panic(err)
	}
	if err := tmpFile.Close(); err != nil {
		panic(err)
	}
	return tmpFile.Name()
}
