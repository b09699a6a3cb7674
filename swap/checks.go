package swap

import (
	"bytes"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/mr-tron/base58"
)

// Treat both Token and Token-2022 as token program.
func (c *Classifier) isTokenProgram(pk solana.PublicKey) bool {
	return pk.Equals(solana.TokenProgramID) || pk.Equals(solana.Token2022ProgramID)
}

// isTransfer: Token Program "Transfer" (3)
func (c *Classifier) isTransfer(instr solana.CompiledInstruction) bool {
	if int(instr.ProgramIDIndex) >= len(c.keys) {
		return false
	}
	progID := c.keys[instr.ProgramIDIndex]
	if !progID.Equals(solana.TokenProgramID) {
		return false
	}
	if len(instr.Accounts) < 3 || len(instr.Data) < 9 {
		return false
	}
	if instr.Data[0] != 3 {
		return false
	}
	for i := 0; i < 3; i++ {
		if int(instr.Accounts[i]) >= len(c.keys) {
			return false
		}
	}
	return true
}

// isTransferCheck: Token or Token-2022 "TransferChecked" (12)
func (c *Classifier) isTransferCheck(instr solana.CompiledInstruction) bool {
	if int(instr.ProgramIDIndex) >= len(c.keys) {
		return false
	}
	progID := c.keys[instr.ProgramIDIndex]
	if !c.isTokenProgram(progID) {
		return false
	}
	if len(instr.Accounts) < 4 || len(instr.Data) < 9 {
		return false
	}
	if instr.Data[0] != 12 {
		return false
	}
	for i := 0; i < 4; i++ {
		if int(instr.Accounts[i]) >= len(c.keys) {
			return false
		}
	}
	return true
}

func (c *Classifier) isJupiterRouteEventInstruction(inst solana.CompiledInstruction) bool {
	if int(inst.ProgramIDIndex) >= len(c.keys) {
		return false
	}
	if !c.keys[inst.ProgramIDIndex].Equals(JUPITER_PROGRAM_ID) || len(inst.Data) == 0 {
		return false
	}
	decodedBytes, err := base58.Decode(inst.Data.String())
	if err != nil || len(decodedBytes) < 16 {
		return false
	}
	return bytes.Equal(decodedBytes[:16], jupiterRouteEventDiscriminator[:])
}

func (c *Classifier) convertRPCToSolanaInstruction(instruction rpc.CompiledInstruction) solana.CompiledInstruction {
	return solana.CompiledInstruction{
		ProgramIDIndex: instruction.ProgramIDIndex,
		Accounts:       instruction.Accounts,
		Data:           instruction.Data,
	}
}

// innerInstructionsAt returns the inner instruction set spawned by the
// top-level instruction at index, already converted to the solana-go shape.
func (c *Classifier) innerInstructionsAt(index int) []solana.CompiledInstruction {
	if c.meta == nil || c.meta.InnerInstructions == nil {
		return nil
	}
	for _, inner := range c.meta.InnerInstructions {
		if inner.Index == uint16(index) {
			result := make([]solana.CompiledInstruction, len(inner.Instructions))
			for i, inst := range inner.Instructions {
				result[i] = c.convertRPCToSolanaInstruction(inst)
			}
			return result
		}
	}
	return nil
}
