package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const export = "Usuário;Tipo;Concluído Task;Data Última Associação;Data de Alteração\n" +
	"JOAO SILVA;Armazenagem;1;01/03/2024 08:00:00;01/03/2024 08:02:00\n" +
	"JOAO SILVA;Armazenagem;0;01/03/2024 08:10:00;01/03/2024 08:12:00\n" +
	"JOAO SILVA;Expedição;1;01/03/2024 09:00:00;01/03/2024 09:03:00\n"

func runRoot(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestCountTasks_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))

	out, err := runRoot(t, "count-tasks", "--file", path, "--operator", "joao", "--json")
	require.NoError(t, err)

	var report countTasksReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "clean", string(report.Status))
	assert.Equal(t, 3, report.Records)
	assert.Equal(t, 2, report.Matched, "incomplete tasks are not matched")
	assert.Equal(t, 2, report.ValidTasks)
}

func TestCountTasks_Table(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))

	out, err := runRoot(t, "count-tasks", "--file", path, "--operator", "JOAO SILVA")
	require.NoError(t, err)
	assert.Contains(t, out, "Armazenagem")
	assert.Contains(t, out, "Expedição")
	assert.Contains(t, out, "TOTAL")
}

func TestCountTasks_RequiresOperator(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.csv")
	require.NoError(t, os.WriteFile(path, []byte(export), 0o644))

	_, err := runRoot(t, "count-tasks", "--file", path)
	assert.Error(t, err)
}

func TestCountTasks_UsesCatalogFromConfigFile(t *testing.T) {
	// GIVEN: A config file naming a catalog where Armazenagem must take at most 90s
	dir := t.TempDir()
	exportPath := filepath.Join(dir, "export.csv")
	require.NoError(t, os.WriteFile(exportPath, []byte(export), 0o644))

	catalogPath := filepath.Join(dir, "catalog.yaml")
	require.NoError(t, os.WriteFile(catalogPath, []byte(`
activities:
  - name: Separação
    unit: caixas
    tiers:
      - level: Nível 1
        minimum_productivity: 0
        unit_value: 0.05
task_targets:
  Armazenagem: 90s
  Expedição: 4m
`), 0o644))

	configPath := filepath.Join(dir, "incentive.yaml")
	require.NoError(t, os.WriteFile(configPath, []byte("catalog: "+catalogPath+"\n"), 0o644))

	// WHEN: Tasks are counted with only --config
	out, err := runRoot(t, "count-tasks", "--config", configPath, "--file", exportPath, "--operator", "joao", "--json")
	require.NoError(t, err)

	// THEN: The 2 minute Armazenagem task exceeds the configured target
	var report countTasksReport
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, 1, report.ValidTasks)
	require.Len(t, report.PerType, 1)
	assert.Equal(t, "Expedição", report.PerType[0].Type)
}
