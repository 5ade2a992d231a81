package language

import "github.com/vektah/gqlparser/v2/ast"

type (
	QueryDocument  = ast.QueryDocument
	SchemaDocument = ast.SchemaDocument
	SelectionSet   = ast.SelectionSet
	Field          = ast.Field
	InlineFragment = ast.InlineFragment
	FragmentSpread = ast.FragmentSpread
	DirectiveList  = ast.DirectiveList
	ArgumentList   = ast.ArgumentList
	Value          = ast.Value
	Type           = ast.Type
	Definition     = ast.Definition
	DefinitionList = ast.DefinitionList
	Position       = ast.Position
)

type DefinitionKind = ast.DefinitionKind

type ValueKind = ast.ValueKind

const (
	Object DefinitionKind = ast.Object
	Scalar DefinitionKind = ast.Scalar
	Enum   DefinitionKind = ast.Enum

	Variable     ValueKind = ast.Variable
	IntValue     ValueKind = ast.IntValue
	FloatValue   ValueKind = ast.FloatValue
	StringValue  ValueKind = ast.StringValue
	BlockValue   ValueKind = ast.BlockValue
	BooleanValue ValueKind = ast.BooleanValue
	EnumValue    ValueKind = ast.EnumValue
	ListValue    ValueKind = ast.ListValue
	ObjectValue  ValueKind = ast.ObjectValue
)
