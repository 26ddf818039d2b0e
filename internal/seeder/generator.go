// Package seeder fills a backend with realistic purchasing data through the
// public API, for demos and load checks.
package seeder

import (
	"fmt"
	"math"

	"github.com/brianvoe/gofakeit/v6"

	"github.com/GenivalfSilva/Sistema-Compras/internal/model"
	"github.com/GenivalfSilva/Sistema-Compras/internal/workflow"
)

var units = []string{"UN", "CX", "PCT", "KG", "L", "PAR", "M"}

var paymentTerms = []string{"À vista", "30 dias", "30/60 dias", "30/60/90 dias", "Boleto 28 dias"}

var places = []string{"Almoxarifado central", "Linha de produção 2", "Escritório administrativo", "Oficina de manutenção", "Sala de servidores"}

// Generator produces fake payloads. It is not safe for concurrent use.
type Generator struct {
	faker *gofakeit.Faker
}

// NewGenerator returns a generator. The same non-zero seed yields the same
// sequence; zero seeds randomly.
func NewGenerator(seed int64) *Generator {
	return &Generator{faker: gofakeit.New(seed)}
}

// Item returns one line item.
func (g *Generator) Item() model.Item {
	return model.Item{
		Codigo:     fmt.Sprintf("%s-%03d", g.faker.LetterN(3), g.faker.Number(1, 999)),
		Nome:       g.faker.ProductName(),
		Unidade:    g.faker.RandomString(units),
		Quantidade: float64(g.faker.Number(1, 50)),
	}
}

// Solicitation returns a create payload with one to five items and an
// estimate in the range the approval limits cover.
func (g *Generator) Solicitation() model.NewSolicitation {
	depts := workflow.Departments()
	prios := workflow.Priorities()

	n := g.faker.Number(1, 5)
	items := make([]model.Item, n)
	for i := range items {
		items[i] = g.Item()
	}
	estimate := model.Money(math.Round(g.faker.Price(50, 20000)*100) / 100)

	return model.NewSolicitation{
		Departamento:   string(depts[g.faker.Number(0, len(depts)-1)]),
		Prioridade:     string(prios[g.faker.Number(0, len(prios)-1)]),
		Descricao:      fmt.Sprintf("Compra de %s", g.faker.ProductCategory()),
		LocalAplicacao: g.faker.RandomString(places),
		Observacoes:    g.faker.Sentence(8),
		ValorEstimado:  &estimate,
		Itens:          items,
	}
}

// Quotation returns a supplier offer for quantity units.
func (g *Generator) Quotation(quantity float64) model.Quotation {
	if quantity <= 0 {
		quantity = 1
	}
	unit := math.Round(g.faker.Price(10, 3000)*100) / 100
	return model.Quotation{
		Fornecedor:         g.faker.Company(),
		ValorUnitario:      model.Money(unit),
		ValorTotal:         model.Money(math.Round(unit*quantity*100) / 100),
		PrazoEntrega:       g.faker.Number(1, 45),
		CondicoesPagamento: g.faker.RandomString(paymentTerms),
	}
}
