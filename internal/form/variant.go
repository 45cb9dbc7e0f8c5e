package form

import "github.com/alexanderramin/pipedeck/internal/domain"

// VariantGroup is the section title of the order subform.
const VariantGroup = "Pedido"

// VariantFields returns the order subform shown for the variant pipeline.
// Its values live in the same custom field map as the pipeline's own fields.
func VariantFields() []*domain.FieldDefinition {
	return []*domain.FieldDefinition{
		{Name: "numero_pedido", Label: "Número do pedido", Type: domain.FieldText, Required: true, Group: VariantGroup, Order: 0, Width: domain.WidthHalf},
		{Name: "data_entrega", Label: "Data de entrega", Type: domain.FieldDate, Required: true, Group: VariantGroup, Order: 1, Width: domain.WidthHalf},
		{Name: "forma_pagamento", Label: "Forma de pagamento", Type: domain.FieldSelect, Required: true, Group: VariantGroup, Order: 2, Width: domain.WidthHalf,
			Options: []domain.FieldOption{
				{Value: "pix", Label: "PIX"},
				{Value: "boleto", Label: "Boleto"},
				{Value: "cartao", Label: "Cartão"},
				{Value: "transferencia", Label: "Transferência"},
			}},
		{Name: "quantidade", Label: "Quantidade", Type: domain.FieldNumber, Group: VariantGroup, Order: 3, Width: domain.WidthHalf},
		{Name: "observacoes_pedido", Label: "Observações do pedido", Type: domain.FieldTextarea, Group: VariantGroup, Order: 4, Width: domain.WidthFull},
	}
}
