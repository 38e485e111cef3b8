package tasklog_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"

	"github.com/warp/incentive-engine/tasklog"
)

func rec(taskType, operator string, elapsed time.Duration, completed string) tasklog.TaskRecord {
	start := ts("04/03/2024 08:00:00")
	return tasklog.TaskRecord{
		Type:         taskType,
		OperatorName: operator,
		AssociatedAt: start,
		AlteredAt:    start.Add(elapsed),
		Completed:    completed,
	}
}

func TestNormalizeOperator(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"maria. SOUZA", "MARIA SOUZA"},
		{"  Maria   Souza ", "MARIA SOUZA"},
		{"M.SOUZA", "M SOUZA"},
		{"joão\tsilva.", "JOÃO SILVA"},
		{"", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tasklog.NormalizeOperator(tt.in), "input %q", tt.in)
	}
}

func TestIsOperatorMatch(t *testing.T) {
	tests := []struct {
		name     string
		record   string
		searched string
		want     bool
	}{
		{"equal after normalization", "maria. SOUZA", "Maria Souza", true},
		{"record holds a partial name", "SOUZA", "Maria Souza", true},
		{"search holds a partial name", "MARIA SOUZA SANTOS", "maria souza", true},
		{"different operator", "JOAO SILVA", "Maria Souza", false},
		{"empty search matches nothing", "JOAO SILVA", " ", false},
		{"empty record operator", "", "Maria Souza", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tasklog.IsOperatorMatch(tt.record, tt.searched))
		})
	}
}

func TestCountValidTasks(t *testing.T) {
	// GIVEN: Armazenagem allows 5 minutes, Ressuprimento 4 minutes
	filter := tasklog.NewFilter(tasklog.NewTargetTable(map[string]time.Duration{
		"Armazenagem":   5 * time.Minute,
		"Ressuprimento": 4 * time.Minute,
		"Transferência": 3 * time.Minute,
	}))

	records := []tasklog.TaskRecord{
		rec("Armazenagem", "MARIA SOUZA", 11*time.Second, "1"),            // valid
		rec("Armazenagem", "maria.souza", 5*time.Minute, "1"),             // valid, on the target
		rec("Armazenagem", "MARIA SOUZA", 10*time.Second, "1"),            // too fast
		rec("Armazenagem", "MARIA SOUZA", 5*time.Minute+time.Second, "1"), // over target
		rec("Ressuprimento", "SOUZA", 2*time.Minute, "1"),                 // valid, partial name
		rec("Ressuprimento", "MARIA SOUZA", 2*time.Minute, "0"),           // not completed
		rec("Transferência", "MARIA SOUZA", 5*time.Second, "1"),           // too fast, type omitted
		rec("Inventário", "MARIA SOUZA", time.Minute, "1"),                // type without target
		rec("Armazenagem", "JOAO SILVA", time.Minute, "1"),                // other operator
	}
	noTimestamp := rec("Armazenagem", "MARIA SOUZA", time.Minute, "1")
	noTimestamp.AlteredAt = time.Time{}
	records = append(records, noTimestamp)

	// WHEN: Counting for "Maria Souza"
	got := filter.CountValidTasks(records, "Maria Souza")

	// THEN: Only the records inside (10s, target] count
	want := tasklog.Summary{
		Total: 3,
		PerType: []tasklog.TypeCount{
			{Type: "Armazenagem", Count: 2, Target: 5 * time.Minute},
			{Type: "Ressuprimento", Count: 1, Target: 4 * time.Minute},
		},
		Matched: 8,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("summary mismatch (-want +got):\n%s", diff)
	}
}

func TestCountValidTasks_ElapsedIsAbsolute(t *testing.T) {
	r := rec("Armazenagem", "ANA", -30*time.Second, "1")

	got := tasklog.NewFilter(tasklog.DefaultTargets()).CountValidTasks([]tasklog.TaskRecord{r}, "ana")

	assert.Equal(t, 1, got.Total)
}

func TestCountValidTasks_NoRecords(t *testing.T) {
	got := tasklog.NewFilter(tasklog.DefaultTargets()).CountValidTasks(nil, "ANA")

	assert.Zero(t, got.Total)
	assert.NotNil(t, got.PerType)
	assert.Empty(t, got.PerType)
}

func TestCountValidTasks_AfterParse(t *testing.T) {
	raw := header + "\n" +
		"ANA LIMA;Armazenagem;1;04/03/2024 08:00:00;04/03/2024 08:01:00\n" +
		"ANA LIMA;armazenagem;1;04/03/2024 08:10:00;04/03/2024 08:10:05\n" +
		"ANA LIMA;Expedicao;1;04/03/2024 09:00:00;04/03/2024 09:03:00\n"

	res := tasklog.Parse(raw)
	got := tasklog.NewFilter(tasklog.DefaultTargets()).CountValidTasks(res.Records, "ana lima")

	assert.Equal(t, 2, got.Total)
	assert.Equal(t, []string{"Armazenagem", "Expedição"}, typeNames(got.PerType))
}

func typeNames(counts []tasklog.TypeCount) []string {
	out := make([]string, 0, len(counts))
	for _, c := range counts {
		out = append(out, c.Type)
	}
	return out
}

func TestTargetTable_Lookup(t *testing.T) {
	table := tasklog.DefaultTargets()

	got, ok := table.Lookup(" transferencia ")
	assert.True(t, ok)
	assert.Equal(t, "Transferência", got.Type)

	_, ok = table.Lookup("Inventário")
	assert.False(t, ok)
	assert.Equal(t, table.Len(), len(table.Targets()))
}
