// Package scenario runs Lua-scripted discovery conversations against a live
// API instance. Scripts build a Scenario value with the global Scenario
// constructor, queue visitor turns and expectations as steps, and return the
// value; the Runner then replays the steps over HTTP.
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"
)

const scenarioTypeName = "scenario"

// Scenario is a named sequence of conversation steps built by a Lua script.
type Scenario struct {
	Name  string
	Steps []Step
}

// Step is one scripted action or expectation.
type Step struct {
	Kind string
	Args map[string]any
}

// LoadScenarioFromFile executes a Lua script and returns the Scenario it
// builds. The script must end with `return scene`.
func LoadScenarioFromFile(path string) (*Scenario, error) {
	state := lua.NewState()
	lua.OpenLibraries(state)

	registerScenarioType(state)
	registerScenarioConstructor(state)

	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, fmt.Errorf("load lua: %w", err)
	}
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, fmt.Errorf("run lua: %w", err)
	}

	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, fmt.Errorf("scenario script must return Scenario")
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	scenario, ok := ud.(*Scenario)
	if !ok || scenario == nil {
		return nil, fmt.Errorf("scenario script returned invalid Scenario")
	}
	if strings.TrimSpace(scenario.Name) == "" {
		scenario.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return scenario, nil
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, scenarioConstructor, 0)
	state.SetGlobal("Scenario")
}

var scenarioConstructor = []lua.RegistryFunction{
	{Name: "new", Function: scenarioNew},
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "start", Function: scenarioStart},
	{Name: "say", Function: scenarioSay},
	{Name: "expect_stage", Function: scenarioExpectStage},
	{Name: "expect_contains", Function: scenarioExpectContains},
	{Name: "expect_calendly", Function: scenarioExpectCalendly},
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	scenario := &Scenario{Name: name}
	state.PushUserData(scenario)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

func scenarioStart(state *lua.State) int {
	scenario := checkScenario(state)
	opts := optionalTable(state, 2)
	data := map[string]any{}
	if source := requiredString(opts, "source"); source != "" {
		data["source"] = source
	}
	if locale := requiredString(opts, "locale"); locale != "" {
		data["locale"] = locale
	}
	appendStep(scenario, "start", data)
	return 0
}

func scenarioSay(state *lua.State) int {
	scenario := checkScenario(state)
	message := lua.CheckString(state, 2)
	appendStep(scenario, "say", map[string]any{"message": message})
	return 0
}

func scenarioExpectStage(state *lua.State) int {
	scenario := checkScenario(state)
	stage := lua.CheckString(state, 2)
	appendStep(scenario, "expect_stage", map[string]any{"stage": stage})
	return 0
}

func scenarioExpectContains(state *lua.State) int {
	scenario := checkScenario(state)
	text := lua.CheckString(state, 2)
	appendStep(scenario, "expect_contains", map[string]any{"text": text})
	return 0
}

func scenarioExpectCalendly(state *lua.State) int {
	scenario := checkScenario(state)
	appendStep(scenario, "expect_calendly", nil)
	return 0
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if scenario, ok := ud.(*Scenario); ok && scenario != nil {
		return scenario
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}

func appendStep(scenario *Scenario, kind string, data map[string]any) {
	if scenario == nil {
		return
	}
	if data == nil {
		data = map[string]any{}
	}
	scenario.Steps = append(scenario.Steps, Step{Kind: kind, Args: data})
}

func optionalTable(state *lua.State, index int) map[string]any {
	if state.IsNoneOrNil(index) || state.TypeOf(index) != lua.TypeTable {
		return map[string]any{}
	}
	return tableToMap(state, index)
}

func tableToMap(state *lua.State, index int) map[string]any {
	output := map[string]any{}
	if state.TypeOf(index) != lua.TypeTable {
		return output
	}

	index = state.AbsIndex(index)
	state.PushNil()
	for state.Next(index) {
		if state.TypeOf(-2) == lua.TypeString {
			key, _ := state.ToString(-2)
			output[key] = luaToGo(state, -1)
		}
		state.Pop(1)
	}
	return output
}

func luaToGo(state *lua.State, index int) any {
	switch state.TypeOf(index) {
	case lua.TypeString:
		value, _ := state.ToString(index)
		return value
	case lua.TypeNumber:
		value, _ := state.ToNumber(index)
		return value
	case lua.TypeBoolean:
		return state.ToBoolean(index)
	case lua.TypeTable:
		return tableToMap(state, index)
	default:
		return nil
	}
}
