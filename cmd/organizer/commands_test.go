package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const corpusDoc = `<root>
<subs name_chs="葬送的芙莉莲" name_cht="葬送的芙莉蓮" name_jp="葬送のフリーレン" name_en="Frieren" type="TV" time="1700000000"/>
<subs name_chs="孤独摇滚！" name_jp="ぼっち・ざ・ろっく！" type="TV"/>
</root>`

// setupEnv 通过环境变量把配置指向临时目录
func setupEnv(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	dbXML := filepath.Join(dir, "db.xml")
	require.NoError(t, os.WriteFile(dbXML, []byte(corpusDoc), 0o644))

	t.Setenv("ANIME_SUBSHARE_DB_PATH", dbXML)
	t.Setenv("ANIME_DATABASE_PATH", ":memory:")
	t.Setenv("ANIME_PROVIDER_KIND", "mock")
	t.Setenv("ANIME_VERIFY_ENABLED", "false")
	t.Setenv("ANIME_LOG_LEVEL", "error")
	return dir
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestSearchCommand(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "search", "芙莉")
	require.NoError(t, err)
	assert.Contains(t, out, "葬送のフリーレン")
	assert.Contains(t, out, "1 result(s)")

	out, err = run(t, "search", "does not exist")
	require.NoError(t, err)
	assert.Contains(t, out, "No matches.")
}

func TestBestAndDiagCommands(t *testing.T) {
	setupEnv(t)

	out, err := run(t, "best", "ぼっち・ざ・ろっく！")
	require.NoError(t, err)
	assert.Contains(t, out, "孤独摇滚！")

	out, err = run(t, "diag")
	require.NoError(t, err)
	assert.Contains(t, out, "records")
	assert.Contains(t, out, "db.xml")
}

func TestUpdateDBCommand_Import(t *testing.T) {
	dir := setupEnv(t)
	src := filepath.Join(dir, "new.xml")
	require.NoError(t, os.WriteFile(src, []byte(`<root><subs name_jp="a" type="TV"/></root>`), 0o644))

	out, err := run(t, "update-db", "--import", src)
	require.NoError(t, err)
	assert.Contains(t, out, "1 records")

	_, err = run(t, "update-db", "--import", filepath.Join(dir, "missing.xml"))
	assert.Error(t, err)
}

func TestScanCommand_Apply(t *testing.T) {
	dir := setupEnv(t)
	root := filepath.Join(dir, "anime")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "[Sub] Frieren [1080p]"), 0o755))

	out, err := run(t, "scan", root)
	require.NoError(t, err)
	assert.Contains(t, out, "葬送的芙莉蓮 (2023)")
	assert.Contains(t, out, "1 folder(s), 1 identified")

	out, err = run(t, "scan", root, "--apply")
	require.NoError(t, err)
	assert.Contains(t, out, "Renamed 1, skipped 0, failed 0")
	assert.DirExists(t, filepath.Join(root, "葬送的芙莉蓮 (2023)"))

	_, err = run(t, "scan", filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
