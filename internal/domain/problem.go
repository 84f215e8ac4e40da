package domain

// Problem 是编译进程序的练习题，不持久化，全部字段不可变。
// TestWrapper 的拼装方式取决于语言：
//   - 解释器语言: 用户代码在前，harness 追加在后 (harness 调用用户定义的函数)；
//   - 数据库语言: TestWrapper 按分隔标记切开，标记前的建表/灌数据部分
//     放在用户查询之前执行，标记后的部分忽略。
type Problem struct {
	ID             string `json:"id"`
	Title          string `json:"title"`
	Language       string `json:"language"`
	Description    string `json:"description"`
	StarterCode    string `json:"starterCode"`
	TestWrapper    string `json:"-"`
	ExpectedOutput string `json:"-"`
}
