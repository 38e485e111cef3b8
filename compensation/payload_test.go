package compensation_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/incentive-engine/compensation"
)

func TestPayload_Request_Variants(t *testing.T) {
	roles := compensation.DefaultRoleTable()

	t.Run("single activity", func(t *testing.T) {
		req, err := singlePayload("Separação", "10", "2").Request(roles)
		require.NoError(t, err)

		in, ok := req.Input.(compensation.SingleActivity)
		require.True(t, ok, "got %T", req.Input)
		assert.Equal(t, "Separação", in.Activity.Name)
		assert.True(t, in.Activity.Hours.Equal(dec("2")))
	})

	t.Run("role lookup ignores accents and case", func(t *testing.T) {
		req, err := compensation.Payload{Role: "OPERADOR DE EMPILHADEIRA", ValidTasksCount: intPtr(3)}.Request(roles)
		require.NoError(t, err)
		assert.Equal(t, compensation.BranchTaskCount, req.Input.Branch())

		activities := []compensation.ActivityInput{{ActivityName: "Separação", Quantity: decPtr("1"), Hours: decPtr("1")}}
		req, err = compensation.Payload{Role: "ajudante de armazem", MultipleActivities: &activities}.Request(roles)
		require.NoError(t, err)
		assert.Equal(t, compensation.BranchMultiActivity, req.Input.Branch())
	})

	t.Run("missing role", func(t *testing.T) {
		_, err := compensation.Payload{}.Request(roles)
		assert.ErrorIs(t, err, compensation.ErrInvalidInput)
	})

	t.Run("single activity without quantity", func(t *testing.T) {
		p := singlePayload("Separação", "10", "2")
		p.Quantity = nil
		_, err := p.Request(roles)
		assert.ErrorIs(t, err, compensation.ErrInvalidRoleRequest)
	})

	t.Run("negative quantity", func(t *testing.T) {
		_, err := singlePayload("Separação", "-1", "2").Request(roles)
		var ie *compensation.InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "quantidade_produzida", ie.Field)
	})

	t.Run("multi activity entry without name", func(t *testing.T) {
		activities := []compensation.ActivityInput{{Quantity: decPtr("1"), Hours: decPtr("1")}}
		_, err := compensation.Payload{Role: compensation.RoleWarehouseHelper, MultipleActivities: &activities}.Request(roles)
		var ie *compensation.InputError
		require.ErrorAs(t, err, &ie)
		assert.Equal(t, "multiple_activities.nome_atividade", ie.Field)
	})

	t.Run("negative task count", func(t *testing.T) {
		_, err := compensation.Payload{Role: compensation.RoleEquipmentOperator, ValidTasksCount: intPtr(-4)}.Request(roles)
		assert.ErrorIs(t, err, compensation.ErrInvalidInput)
	})

	t.Run("blank KPI names are dropped", func(t *testing.T) {
		p := singlePayload("Separação", "10", "2")
		kpis := []string{" ", "Pontualidade", ""}
		p.KPIs = &kpis
		req, err := p.Request(roles)
		require.NoError(t, err)
		assert.Equal(t, []string{"Pontualidade"}, req.KPIs)
	})
}

func TestPayload_JSONKeyPresenceSurvivesRoundTrip(t *testing.T) {
	// GIVEN: A client document with an explicitly empty KPI list and no hours key
	raw := `{"role":"Conferente","shift":"Manhã","nome_atividade":"Separação","quantidade_produzida":100,"kpis_atingidos":[]}`

	var p compensation.Payload
	require.NoError(t, json.Unmarshal([]byte(raw), &p))

	// WHEN: It is stored and read back
	stored, err := json.Marshal(p)
	require.NoError(t, err)

	var keys map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(stored, &keys))

	// THEN: Present keys stay present (even empty), absent keys stay absent
	assert.Contains(t, keys, "kpis_atingidos")
	assert.JSONEq(t, `[]`, string(keys["kpis_atingidos"]))
	assert.Contains(t, keys, "quantidade_produzida")
	assert.NotContains(t, keys, "tempo_horas")
	assert.NotContains(t, keys, "multiple_activities")
	assert.NotContains(t, keys, "valid_tasks_count")
	assert.NotContains(t, keys, "input_adicional")

	var back compensation.Payload
	require.NoError(t, json.Unmarshal(stored, &back))
	require.NotNil(t, back.Quantity)
	assert.True(t, back.Quantity.Equal(dec("100")))
}
