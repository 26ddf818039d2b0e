package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

func TestMoney_Unmarshal(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{in: `"1234.50"`, want: 1234.5},
		{in: `99.9`, want: 99.9},
		{in: `""`, want: 0},
		{in: `0`, want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var m Money
			require.NoError(t, json.Unmarshal([]byte(tt.in), &m))
			assert.InDelta(t, float64(tt.want), float64(m), 0.0001)
		})
	}

	var m Money
	assert.Error(t, json.Unmarshal([]byte(`"abc"`), &m))
}

func TestMoney_NullLeavesPointerNil(t *testing.T) {
	var s struct {
		V *Money `json:"v"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"v":null}`), &s))
	assert.Nil(t, s.V)
}

func TestMoney_MarshalAndString(t *testing.T) {
	data, err := json.Marshal(Money(10))
	require.NoError(t, err)
	assert.Equal(t, "10.00", string(data))
	assert.Equal(t, "R$ 1500.25", Money(1500.25).String())
}

func TestParseMoney(t *testing.T) {
	m, err := ParseMoney("12,5")
	require.NoError(t, err)
	assert.InDelta(t, 12.5, float64(m), 0.0001)

	_, err = ParseMoney("-1")
	assert.Error(t, err)
	_, err = ParseMoney("dez")
	assert.Error(t, err)
}

func TestDecodeList(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []int
	}{
		{name: "bare array", in: `[1,2,3]`, want: []int{1, 2, 3}},
		{name: "page", in: `{"count":2,"next":null,"previous":null,"results":[4,5]}`, want: []int{4, 5}},
		{name: "page without results", in: `{"count":0}`, want: []int{}},
		{name: "empty body", in: ``, want: []int{}},
		{name: "null array", in: `null`, want: []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeList[int]([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := DecodeList[int]([]byte(`[1,"x"]`))
	assert.Error(t, err)
}

func TestSolicitation_DecodeBackendShape(t *testing.T) {
	raw := `{
		"id": 7,
		"numero_solicitacao_estoque": 1042,
		"solicitante": "Maria",
		"departamento": "TI",
		"prioridade": "Alta",
		"status": "Em Cotação",
		"descricao": "Notebooks",
		"valor_estimado": "8500.00",
		"valor_final": null,
		"itens": [{"codigo": "NB-01", "nome": "Notebook", "unidade": "UN", "quantidade": 2}],
		"cotacoes": [{"id": 1, "fornecedor": "ACME", "valor_unitario": 4000, "valor_total": "8000.00", "prazo_entrega": 10, "condicoes_pagamento": "30 dias", "selecionada": true}],
		"created_at": "2024-03-01T10:00:00Z"
	}`

	var s Solicitation
	require.NoError(t, json.Unmarshal([]byte(raw), &s))

	assert.Equal(t, workflow.StatusEmCotacao, s.Status)
	require.NotNil(t, s.ValorEstimado)
	assert.InDelta(t, 8500.0, float64(*s.ValorEstimado), 0.001)
	assert.Nil(t, s.ValorFinal)
	require.Len(t, s.Cotacoes, 1)
	assert.True(t, s.Cotacoes[0].Selecionada)
	assert.InDelta(t, 8000.0, float64(s.Cotacoes[0].ValorTotal), 0.001)
	assert.Equal(t, 2.0, s.Itens[0].Quantidade)
}
