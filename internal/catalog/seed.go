package catalog

import (
	"fmt"
	"os"

	"github.com/ashendes/order-saga/internal/models"
	"gopkg.in/yaml.v3"
)

type seedFile struct {
	Products []struct {
		ID    string `yaml:"id"`
		Name  string `yaml:"name"`
		Price string `yaml:"price"`
		Stock int    `yaml:"stock"`
	} `yaml:"products"`
}

// DefaultSeed is loaded when no seed file is configured.
func DefaultSeed() []models.Product {
	return []models.Product{
		{ID: "p1", Name: "Notebook", Price: models.MustMoney("10.00"), Stock: 5},
		{ID: "p2", Name: "Fountain Pen", Price: models.MustMoney("5.50"), Stock: 0},
		{ID: "p3", Name: "Ink Bottle", Price: models.MustMoney("7.25"), Stock: 20},
	}
}

// LoadSeed reads products from a YAML file of the form
//
//	products:
//	  - {id: p1, name: Notebook, price: "10.00", stock: 5}
func LoadSeed(path string) ([]models.Product, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed %s: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(raw, &f); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}

	out := make([]models.Product, 0, len(f.Products))
	for i, p := range f.Products {
		price, err := models.NewMoney(p.Price)
		if err != nil {
			return nil, fmt.Errorf("seed product %d (%s): price: %w", i, p.ID, err)
		}
		if p.ID == "" || p.Name == "" {
			return nil, fmt.Errorf("seed product %d: id and name are required", i)
		}
		out = append(out, models.Product{ID: p.ID, Name: p.Name, Price: price, Stock: p.Stock})
	}
	return out, nil
}
