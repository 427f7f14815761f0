package main

import (
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/pkg/errors"

	"go.viam.com/datalog/config"
	"go.viam.com/datalog/drivers"
	"go.viam.com/datalog/manager"
)

func modelsTable() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Model", "Default Address", "Data Ready", "Simulated"})
	for _, name := range drivers.Models() {
		model, _ := drivers.Lookup(name)
		dataReady := "timer"
		if model.Interrupt {
			dataReady = "interrupt"
		}
		t.AppendRow(table.Row{name, fmt.Sprintf("0x%02x", model.DefaultAddress), dataReady, model.Simulator != nil})
	}
	return t.Render()
}

func channelsTable(cfg *config.Config, m *manager.Manager) (string, error) {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"Sensor", "Model", "#", "Type", "Unit", "Active", "ODR", "FS", "Rates", "Full Scales"})
	for _, sensorCfg := range cfg.Sensors {
		sensor, ok := m.SensorByName(sensorCfg.Name)
		if !ok {
			return "", errors.Wrap(manager.ErrUnknownSensor, sensorCfg.Name)
		}
		desc, err := m.Registrar().Descriptor(sensor.ID())
		if err != nil {
			return "", err
		}
		status, err := m.Registrar().Status(sensor.ID())
		if err != nil {
			return "", err
		}
		for i, ch := range desc.Channels {
			st := status.Channels[i]
			t.AppendRow(table.Row{
				sensorCfg.Name, desc.Name, ch.ID, ch.Type, ch.Unit, st.Active,
				st.Rate, st.FullScale, joinFloats(ch.Rates), joinFloats(ch.FullScales),
			})
		}
		t.AppendSeparator()
	}
	return t.Render(), nil
}

func statsTable(m *manager.Manager) string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"ID", "Sensor", "State", "Interrupts", "Drains", "Short", "Batches", "Samples", "Measured Hz"})
	for _, id := range m.SensorIDs() {
		sensor, ok := m.Sensor(id)
		if !ok {
			continue
		}
		stats := sensor.Stats()
		measured := make([]string, 0, 2)
		if status, err := m.Registrar().Status(id); err == nil {
			for _, ch := range status.Channels {
				if ch.Active {
					measured = append(measured, fmt.Sprintf("%.2f", ch.MeasuredRate))
				}
			}
		}
		t.AppendRow(table.Row{
			id, sensor.Name(), sensor.State(), stats.Interrupts, stats.Drains, stats.ShortDrains,
			stats.Batches, stats.Samples, strings.Join(measured, " / "),
		})
	}
	return t.Render()
}

func joinFloats(values []float64) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprintf("%g", v)
	}
	return strings.Join(parts, ", ")
}
