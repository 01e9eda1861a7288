package order

import (
	"fmt"
	"strconv"
)

// Capabilities 描述一个交易场所的计量能力。
type Capabilities struct {
	// CostBased 表示该场所的市价买单以名义金额而非数量计价。
	CostBased bool
	// UsesContracts 表示该场所的合约以整张计量。
	UsesContracts bool
}

// costBasedVenues 列出现货买单按名义金额计价的场所。
var costBasedVenues = map[Venue]bool{
	VenueUpbit:  true,
	VenueBybit:  true,
	VenueBitget: true,
}

// CapabilitiesFor 返回指定场所与标的类别的计量能力。
func CapabilitiesFor(v Venue, class InstrumentClass) Capabilities {
	return Capabilities{
		CostBased:     class != ClassFutures && costBasedVenues[v],
		UsesContracts: class == ClassFutures && v == VenueOKX,
	}
}

// 展示标签。各分支组合形式与原始信号字段一一对应。
const (
	LabelCost             = "成本"
	LabelPercent          = "比例"
	LabelQuantity         = "数量"
	LabelContracts        = "合约"
	LabelContractQuantity = "合约(数量)"
	LabelPercentQuantity  = "比例(数量)"
	LabelPercentContracts = "比例(合约)"
	LabelContractCost     = "合约(成本)"
)

// ValueUnknown 表示提交前后都无法得到具体数值。
const ValueUnknown = "未知"

// Display 为展示用的(标签, 数值)对。
type Display struct {
	Label string
	Value string

	// Pending 表示提交前无法折算出具体数值，须待结果返回后重算。
	Pending bool
}

// Describe 按优先级把订单意图折算为展示用的数量描述。
// res 为空表示提交前调用；提交后由 Reconcile 带上结果字段重算同一套分支。
// 交易所未上报的可选字段一律展示为未知，绝不折算为 0。
func Describe(spec *Spec, caps Capabilities, res *Result) Display {
	// 成本计价场所的现货买单优先以名义金额展示。
	if !spec.IsFutures() && spec.Action.IsBuy() && caps.CostBased {
		if spec.Amount != nil {
			switch {
			case res != nil && res.Cost != nil:
				return Display{Label: LabelCost, Value: FormatAmount(*res.Cost)}
			case spec.Price != nil:
				// 非所有成本计价场所都上报 cost，此时按信号价折算名义金额。
				return Display{Label: LabelCost, Value: FormatAmount(*spec.Amount * *spec.Price)}
			default:
				return Display{Label: LabelCost, Value: ValueUnknown, Pending: true}
			}
		}
		if spec.Percent != nil {
			return Display{Label: LabelPercent, Value: formatPercent(*spec.Percent)}
		}
	}

	if spec.Venue.IsStock() {
		if spec.Amount != nil {
			return Display{Label: LabelQuantity, Value: FormatAmount(*spec.Amount)}
		}
		if spec.Percent != nil {
			return Display{Label: LabelPercent, Value: formatPercent(*spec.Percent)}
		}
		return Display{Label: LabelQuantity, Value: ValueUnknown}
	}

	if res == nil || res.FilledAmount == nil {
		if spec.Amount != nil {
			if caps.UsesContracts && spec.IsFutures() && spec.ContractSize != nil {
				count, residual := spec.Contracts()
				value := fmt.Sprintf("%d(%s)", count, FormatAmount(float64(count)**spec.ContractSize))
				if residual > 0 {
					value += fmt.Sprintf("，残余%s", FormatAmount(residual))
				}
				return Display{Label: LabelContractQuantity, Value: value}
			}
			return Display{Label: LabelQuantity, Value: FormatAmount(*spec.Amount)}
		}
		if spec.Percent != nil {
			if res != nil && res.AmountByPercent != nil {
				label := LabelPercentQuantity
				if spec.ContractSize != nil {
					label = LabelPercentContracts
				}
				return Display{Label: label, Value: fmt.Sprintf("%s(%s)", formatPercent(*spec.Percent), FormatAmount(*res.AmountByPercent))}
			}
			// 场所原生支持按比例下单，提交前无从得知具体数量。
			return Display{Label: LabelPercent, Value: formatPercent(*spec.Percent), Pending: true}
		}
		return Display{Label: LabelQuantity, Value: ValueUnknown}
	}

	filled := *res.FilledAmount
	if spec.ContractSize != nil {
		if res.Cost != nil {
			return Display{Label: LabelContractCost, Value: fmt.Sprintf("%s(%.2f)", FormatAmount(filled), *res.Cost)}
		}
		return Display{Label: LabelContracts, Value: FormatAmount(filled)}
	}

	if spec.Amount != nil {
		return Display{Label: LabelQuantity, Value: FormatAmount(filled)}
	}
	if spec.Percent != nil {
		label := LabelPercentQuantity
		if spec.ContractSize != nil {
			label = LabelPercentContracts
		}
		return Display{Label: label, Value: fmt.Sprintf("%s(%s)", formatPercent(*spec.Percent), FormatAmount(filled))}
	}

	return Display{Label: LabelQuantity, Value: FormatAmount(filled)}
}

// Reconcile 在拿到下单结果后用同一套分支重算展示数量。
func Reconcile(spec *Spec, caps Capabilities, res *Result) Display {
	return Describe(spec, caps, res)
}

// FormatAmount 以最短无损形式格式化数量，避免无意义的尾随零。
func FormatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64) + "%"
}
