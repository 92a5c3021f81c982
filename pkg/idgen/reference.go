package idgen

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
)

// ============================================================================
// 操作流水引用号（雪花算法）
// ============================================================================
//
// 同一次操作产生的多条分录共享一个 Reference：
//   - 活期取款：WITHDRAWAL + FEE
//   - 转账：TRANSFER_OUT + TRANSFER_IN
//
// 格式：OP + 雪花ID，例如 OP1793215488293191680
//
// ============================================================================

const ReferencePrefix = "OP"

// References 基于雪花算法的引用号生成器
type References struct {
	node *snowflake.Node
}

// NewReferences 创建引用号生成器，workerID 取值 0-1023
func NewReferences(workerID int64) (*References, error) {
	node, err := snowflake.NewNode(workerID)
	if err != nil {
		return nil, fmt.Errorf("创建雪花节点失败: %w", err)
	}
	return &References{node: node}, nil
}

func (r *References) Next() string {
	return ReferencePrefix + r.node.Generate().String()
}
