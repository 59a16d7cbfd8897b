package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/chmdznr/fieldsync/internal/config"
	"github.com/chmdznr/fieldsync/internal/db"
	"github.com/chmdznr/fieldsync/internal/drafts"
	"github.com/chmdznr/fieldsync/internal/remote"
	"github.com/chmdznr/fieldsync/pkg/models"
	"github.com/chmdznr/fieldsync/pkg/version"
	"github.com/eiannone/keyboard"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnswers(t *testing.T) {
	answers, err := parseAnswers([]string{"empresa=Construtora X", "obs=a=b", "vazio="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"empresa": "Construtora X", "obs": "a=b", "vazio": ""}, answers)

	for _, bad := range [][]string{{"novalue"}, {"=x"}, {"q=1", "q=2"}} {
		_, err := parseAnswers(bad)
		assert.Error(t, err, "%q", bad)
	}
}

func TestParsePhotoFlag(t *testing.T) {
	tests := []struct {
		raw     string
		want    photoFlag
		wantErr bool
	}{
		{raw: "q1=/tmp/a.jpg", want: photoFlag{Question: "q1", Path: "/tmp/a.jpg"}},
		{raw: "q1=/tmp/a.jpg@-25.43,-49.27", want: photoFlag{Question: "q1", Path: "/tmp/a.jpg", Coordinates: "-25.43, -49.27"}},
		{raw: "q1=/tmp/me@home.jpg", want: photoFlag{Question: "q1", Path: "/tmp/me@home.jpg"}},
		{raw: "q1=/tmp/a.jpg@91,0", want: photoFlag{Question: "q1", Path: "/tmp/a.jpg@91,0"}},
		{raw: "q1=", wantErr: true},
		{raw: "/tmp/a.jpg", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := parsePhotoFlag(tt.raw)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestIsCancelKey(t *testing.T) {
	assert.True(t, isCancelKey(keyboard.KeyEvent{Rune: 'q'}))
	assert.True(t, isCancelKey(keyboard.KeyEvent{Key: keyboard.KeyEsc}))
	assert.True(t, isCancelKey(keyboard.KeyEvent{Key: keyboard.KeyCtrlC}))
	assert.False(t, isCancelKey(keyboard.KeyEvent{Rune: 'x'}))
}

func TestNewSubmitter(t *testing.T) {
	s, closeFn, err := newSubmitter(config.RemoteConfig{Kind: config.RemoteREST, URL: "https://example.supabase.co", APIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &remote.RESTSubmitter{}, s)
	closeFn()

	s, closeFn, err = newSubmitter(config.RemoteConfig{Kind: config.RemotePostgres, DSN: "postgres://localhost/obras"})
	require.NoError(t, err)
	assert.IsType(t, &remote.PostgresSubmitter{}, s)
	closeFn()

	_, _, err = newSubmitter(config.RemoteConfig{Kind: "ftp"})
	assert.Error(t, err)
}

func writeForm(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "form.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
id: 7
title: LO 2025
sections:
  - id: identificacao
    title: IDENTIFICAÇÃO
    questions:
      - id: empresa
        type: text
        text: Empresa contratada
        required: true
      - id: qualidade
        type: radio
        text: Qualidade adequada?
        options: [Sim, Não]
`), 0o644))
	return path
}

func TestDraftCommandAppendsToStore(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "drafts.db")
	form := writeForm(t, dir)
	cfgPath := filepath.Join(dir, "absent.yaml")

	args := []string{"fieldsync", "--config", cfgPath, "--db", dbPath, "--log-level", "error",
		"draft", "--form", form, "--answer", "empresa=Construtora X, Ltda", "--answer", "qualidade=Sim"}
	require.NoError(t, newApp().Run(args))

	err := newApp().Run([]string{"fieldsync", "--config", cfgPath, "--db", dbPath, "--log-level", "error",
		"draft", "--form", form, "--answer", "qualidade=Talvez"})
	assert.Error(t, err)

	database, err := db.New(dbPath)
	require.NoError(t, err)
	defer database.Close()
	records := drafts.NewStore(database, nil).LoadAll(context.Background())
	require.Len(t, records, 1)
	assert.Equal(t, "7", records[0].FormID)
	assert.Equal(t, "Construtora X, Ltda", records[0].Answers["empresa"])
	assert.Equal(t, models.StatusDraft, records[0].Status)
}

func TestDraftCommandNeedsStorageForPhotos(t *testing.T) {
	dir := t.TempDir()
	app := newApp()
	err := app.Run([]string{"fieldsync", "--config", filepath.Join(dir, "absent.yaml"), "--db", filepath.Join(dir, "d.db"),
		"draft", "--form", writeForm(t, dir), "--answer", "empresa=X", "--photo", "empresa=" + filepath.Join(dir, "a.jpg")})
	assert.ErrorContains(t, err, "storage.endpoint")
}

func TestConfigInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "conf", "fieldsync.yaml")

	require.NoError(t, newApp().Run([]string{"fieldsync", "--config", path, "config", "init"}))
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultConfig().Sync, cfg.Sync)

	err = newApp().Run([]string{"fieldsync", "--config", path, "config", "init"})
	assert.ErrorContains(t, err, "already exists")
	assert.NoError(t, newApp().Run([]string{"fieldsync", "--config", path, "config", "init", "--force"}))
}

func TestAppVersionIncludesBuildInfo(t *testing.T) {
	assert.Equal(t, version.String(), newApp().Version)
}
