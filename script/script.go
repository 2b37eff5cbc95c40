package script

// Lua automation over an unlocked flash handle. Scripts drive erase/write/
// read sequences that would be tedious to express as one-shot CLI calls:
// wear patterns, partial-page rewrites, read-back verification loops.

import (
	"encoding/base64"
	"encoding/hex"
	"strings"

	lua "github.com/yuin/gopher-lua"

	"github.com/stmtools/flashgo/flash"
)

// State carries everything the lua functions need: the flash handle, the
// script arguments, and the log buffer handed back to the caller.
type State struct {
	Flash     *flash.Unlocked
	Arguments []string

	logs strings.Builder
}

// AddFunction registers a global lua function bound to this state.
func (state *State) AddFunction(name string, f func(*lua.LState, *State) int, L *lua.LState) {
	L.SetGlobal(name, L.NewFunction(func(L *lua.LState) int { return f(L, state) }))
}

// Run executes a script against the given unlocked flash and returns
// everything the script logged.
func Run(code string, arguments []string, u *flash.Unlocked) (string, error) {
	state := State{
		Flash:     u,
		Arguments: arguments,
	}

	L := lua.NewState()
	defer L.Close()

	L.SetGlobal("hex", L.NewFunction(luaHex))
	L.SetGlobal("base64", L.NewFunction(luaBase64))
	state.AddFunction("log", luaLog, L)
	state.AddFunction("arguments", luaArguments, L)
	state.AddFunction("erase", luaErase, L)
	state.AddFunction("write", luaWrite, L)
	state.AddFunction("read", luaRead, L)
	state.AddFunction("pages", luaPages, L)
	state.AddFunction("page_size", luaPageSize, L)
	state.AddFunction("page_address", luaPageAddress, L)

	if err := L.DoString(code); err != nil {
		return state.logs.String(), err
	}
	return state.logs.String(), nil
}

// log(...) appends a tab-separated line to the script output.
func luaLog(L *lua.LState, state *State) int {
	n := L.GetTop()
	parts := make([]string, n)
	for i := 1; i <= n; i++ {
		parts[i-1] = L.ToStringMeta(L.Get(i)).String()
	}
	state.logs.WriteString(strings.Join(parts, "\t"))
	state.logs.WriteString("\n")
	return 0
}

// arguments() returns the script arguments as multiple values.
func luaArguments(L *lua.LState, state *State) int {
	for _, arg := range state.Arguments {
		L.Push(lua.LString(arg))
	}
	return len(state.Arguments)
}

// erase(page) erases one page.
func luaErase(L *lua.LState, state *State) int {
	page := L.ToInt(1)
	if page < 0 {
		L.RaiseError("negative page index: %d", page)
		return 0
	}
	if err := state.Flash.ErasePage(flash.FlashPage(page)); err != nil {
		L.RaiseError("erase page %d: %s", page, err)
		return 0
	}
	return 0
}

// write(address, data) programs raw bytes (a lua string) at any address.
func luaWrite(L *lua.LState, state *State) int {
	addr := uint32(L.ToInt64(1))
	data := []byte(L.ToString(2))
	if err := state.Flash.Write(addr, data); err != nil {
		L.RaiseError("write %d bytes at %#x: %s", len(data), addr, err)
		return 0
	}
	return 0
}

// read(address, length) returns raw bytes as a lua string.
func luaRead(L *lua.LState, state *State) int {
	addr := uint32(L.ToInt64(1))
	length := L.ToInt(2)
	if length < 0 {
		L.RaiseError("negative read length: %d", length)
		return 0
	}
	buf := make([]byte, length)
	state.Flash.Read(addr, buf)
	L.Push(lua.LString(string(buf)))
	return 1
}

// pages() returns the page count of the target.
func luaPages(L *lua.LState, state *State) int {
	L.Push(lua.LNumber(state.Flash.Geometry().NumPages))
	return 1
}

// page_size() returns the erase granularity in bytes.
func luaPageSize(L *lua.LState, state *State) int {
	L.Push(lua.LNumber(state.Flash.Geometry().PageSize))
	return 1
}

// page_address(page) returns the absolute byte address of a page.
func luaPageAddress(L *lua.LState, state *State) int {
	page := L.ToInt(1)
	L.Push(lua.LNumber(state.Flash.Geometry().PageAddress(flash.FlashPage(page))))
	return 1
}

// hex(str) decodes a hex string into raw bytes.
func luaHex(L *lua.LState) int {
	decoded, err := hex.DecodeString(L.ToString(1))
	if err != nil {
		L.RaiseError("Error decoding hex in lua script: %s", err)
		return 0
	}
	L.Push(lua.LString(string(decoded)))
	return 1
}

// base64(str) decodes a base64 string into raw bytes.
func luaBase64(L *lua.LState) int {
	decoded, err := base64.StdEncoding.DecodeString(L.ToString(1))
	if err != nil {
		L.RaiseError("Error decoding base64 in lua script: %s", err)
		return 0
	}
	L.Push(lua.LString(string(decoded)))
	return 1
}
