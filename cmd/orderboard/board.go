package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"

	"github.com/yeremiapane/restaurant-backoffice/models"
	"github.com/yeremiapane/restaurant-backoffice/services"
	"github.com/yeremiapane/restaurant-backoffice/utils"
)

const timeLayout = "02/01 15:04"

type boardPrinter struct {
	out     io.Writer
	session *services.Session
	notices *services.RecordingNotifier
}

// Print renders the filtered board followed by any notices raised since the last call.
func (p *boardPrinter) Print(ctx context.Context, filter services.ListFilter) error {
	orders, err := p.session.Board.View(ctx, filter)
	if err != nil {
		return err
	}
	if err := renderBoard(p.out, orders); err != nil {
		return err
	}
	for _, n := range p.notices.Drain() {
		fmt.Fprintf(p.out, "[%s] %s\n", n.Level, n.Message)
	}
	return nil
}

func renderBoard(w io.Writer, orders []models.Order) error {
	table := tablewriter.NewWriter(w)
	table.Header("Pedido", "Cliente", "Tipo", "Status", "Itens", "Total", "Criado")

	for _, o := range orders {
		row := []string{
			shortID(o.ID),
			o.CustomerName,
			string(o.OrderType),
			o.Status.Label(),
			strconv.Itoa(o.ItemCount()),
			utils.FormatCurrency(o.TotalAmount),
			o.CreatedAt.Local().Format(timeLayout),
		}
		if err := table.Append(row); err != nil {
			return err
		}
	}
	if err := table.Render(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d pedido(s)\n", len(orders))
	return err
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
