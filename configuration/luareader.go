// SPDX-License-Identifier: ISC
// Copyright (c) 2014-2019 Bitmark Inc.
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package configuration

import (
	"github.com/yuin/gluamapper"
	lua "github.com/yuin/gopher-lua"

	"github.com/bitmark-inc/notaryd/fault"
)

// configuration files are Lua scripts, so a deployment can compute
// values instead of repeating them
//
// the script runs with arg[0] set to its own path and must leave the
// configuration table on top of the stack; field names map verbatim
// onto the target structure
func readLuaScript(fileName string, target interface{}) error {
	vm := lua.NewState()
	defer vm.Close()

	vm.OpenLibs()

	arg := &lua.LTable{}
	arg.Insert(0, lua.LString(fileName))
	vm.SetGlobal("arg", arg)

	if err := vm.DoFile(fileName); nil != err {
		return err
	}

	table, ok := vm.Get(vm.GetTop()).(*lua.LTable)
	if !ok {
		return fault.ErrInvalidStructure
	}

	mapper := gluamapper.Mapper{
		Option: gluamapper.Option{
			NameFunc: func(name string) string { return name },
			TagName:  "gluamapper",
		},
	}
	return mapper.Map(table, target)
}
